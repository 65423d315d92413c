package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// SQLExecutor runs queries through database/sql. Each call takes its own
// connection from the pool.
type SQLExecutor struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

// NewSQLExecutor wraps an open database.
func NewSQLExecutor(db *sql.DB, dialect Dialect, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect, timeout: timeout}
}

// NewDuckDBExecutor opens a DuckDB file read-only. An empty path opens an
// in-memory database, which cannot be read-only.
func NewDuckDBExecutor(path string, timeout time.Duration) (*SQLExecutor, error) {
	dsn := path
	if path != "" && !strings.Contains(path, "access_mode=") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "access_mode=READ_ONLY"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return NewSQLExecutor(db, DialectDuckDB, timeout), nil
}

func (e *SQLExecutor) Dialect() Dialect { return e.dialect }

// TestConnection pings the database
func (e *SQLExecutor) TestConnection(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *SQLExecutor) Close() error {
	return e.db.Close()
}

func (e *SQLExecutor) Execute(ctx context.Context, query string) (*QueryResult, error) {
	clean, err := ensureReadOnly(query)
	if err != nil {
		return nil, err
	}

	qCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := e.db.Conn(qCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	start := time.Now()
	rows, err := conn.QueryContext(qCtx, clean)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := vals[i].([]byte); ok {
				m[col] = string(b)
			} else {
				m[col] = vals[i]
			}
		}
		result.Rows = append(result.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.ExecutionTime = time.Since(start)
	return result, nil
}
