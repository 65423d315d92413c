package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExecutor runs queries on a pgx pool, each inside its own read-only
// transaction that is always rolled back.
type PostgresExecutor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresExecutor connects a pool to url
func NewPostgresExecutor(ctx context.Context, url string, maxConns int32, timeout time.Duration) (*PostgresExecutor, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	return &PostgresExecutor{pool: pool, timeout: timeout}, nil
}

func (e *PostgresExecutor) Dialect() Dialect { return DialectPostgres }

// TestConnection pings the database
func (e *PostgresExecutor) TestConnection(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

func (e *PostgresExecutor) Close() error {
	e.pool.Close()
	return nil
}

// Execute runs sql and returns at most the rows the statement yields.
func (e *PostgresExecutor) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	clean, err := ensureReadOnly(sql)
	if err != nil {
		return nil, err
	}

	qCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.pool.Acquire(qCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(qCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback(context.Background()) //nolint:errcheck

	start := time.Now()
	rows, err := tx.Query(qCtx, clean)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var columns []string
	for _, f := range rows.FieldDescriptions() {
		columns = append(columns, f.Name)
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			m[col] = vals[i]
		}
		result.Rows = append(result.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.ExecutionTime = time.Since(start)
	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
