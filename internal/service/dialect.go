package service

import "fmt"

// Dialect identifies the SQL flavour of the configured executor.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
	DialectBigQuery Dialect = "bigquery"
)

// ParseDialect maps a config value to a Dialect, defaulting to postgres.
func ParseDialect(s string) Dialect {
	switch Dialect(s) {
	case DialectDuckDB, DialectBigQuery:
		return Dialect(s)
	default:
		return DialectPostgres
	}
}

// SinceDays renders "column is within the last n days".
func (d Dialect) SinceDays(column string, days int) string {
	if d == DialectBigQuery {
		return fmt.Sprintf("%s >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d DAY)", column, days)
	}
	return fmt.Sprintf("%s >= CURRENT_TIMESTAMP - INTERVAL '%d days'", column, days)
}

// PromptRules are dialect-specific instructions appended to the generator prompt.
func (d Dialect) PromptRules() string {
	switch d {
	case DialectBigQuery:
		return "- Use BigQuery Standard SQL.\n" +
			"- For time windows use " + d.SinceDays("created_at", 7) + " (change the day count as needed).\n" +
			"- Refer to tables by their bare names; do not qualify them with a project or dataset."
	case DialectDuckDB:
		return "- Use DuckDB SQL.\n" +
			"- For time windows use " + d.SinceDays("created_at", 7) + " (change the day count as needed)."
	default:
		return "- Use PostgreSQL.\n" +
			"- For time windows use " + d.SinceDays("created_at", 7) + " (change the day count as needed)."
	}
}
