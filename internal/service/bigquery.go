package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/cortexai/askql/internal/security"
)

// BigQueryConfig holds the warehouse settings for BigQueryExecutor.
type BigQueryConfig struct {
	ProjectID       string
	DatasetID       string
	CredentialsFile string
	Location        string
	Timeout         time.Duration
}

// BigQueryExecutor runs queries as BigQuery jobs. Every query is dry-run
// first and refused when the estimate exceeds the cost limit.
type BigQueryExecutor struct {
	client *bigquery.Client
	cfg    BigQueryConfig
	cost   *security.CostTracker
}

// NewBigQueryExecutor creates a new BigQuery client
func NewBigQueryExecutor(ctx context.Context, cfg BigQueryConfig, cost *security.CostTracker) (*BigQueryExecutor, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &BigQueryExecutor{client: client, cfg: cfg, cost: cost}, nil
}

func (e *BigQueryExecutor) Dialect() Dialect { return DialectBigQuery }

// Close releases the BigQuery client
func (e *BigQueryExecutor) Close() error {
	return e.client.Close()
}

// TestConnection verifies BigQuery connectivity
func (e *BigQueryExecutor) TestConnection(ctx context.Context) error {
	job, err := e.client.Query("SELECT 1").Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

func (e *BigQueryExecutor) query(sql string, dryRun bool) *bigquery.Query {
	q := e.client.Query(sql)
	q.DryRun = dryRun
	q.DefaultProjectID = e.cfg.ProjectID
	q.DefaultDatasetID = e.cfg.DatasetID
	return q
}

// Execute dry-runs sql, checks the byte estimate, then runs it.
func (e *BigQueryExecutor) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	clean, err := ensureReadOnly(sql)
	if err != nil {
		return nil, err
	}

	qCtx, cancel := withTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	dry, err := e.query(clean, true).Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}
	var estimate int64
	if stats := dry.LastStatus().Statistics; stats != nil {
		estimate = stats.TotalBytesProcessed
	}
	if err := e.cost.CheckLimits(estimate); err != nil {
		return nil, err
	}

	start := time.Now()
	job, err := e.query(clean, false).Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	result := &QueryResult{Rows: []map[string]any{}}
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		result.Rows = append(result.Rows, m)
	}
	for _, f := range it.Schema {
		result.Columns = append(result.Columns, f.Name)
	}

	result.ExecutionTime = time.Since(start)
	if stats := job.LastStatus().Statistics; stats != nil {
		e.cost.LogQueryCost(clean, stats.TotalBytesProcessed, result.ExecutionTime.Milliseconds())
	} else {
		log.Debug().Str("job_id", job.ID()).Msg("bigquery job returned no statistics")
	}
	return result, nil
}
