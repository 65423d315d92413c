package models

import "time"

// Confidence levels. The branch that produced a response fixes its confidence.
const (
	ConfidenceNone = 0.0
	ConfidenceLow  = 0.4
	ConfidenceHigh = 0.7
)

// Response is returned by POST /api/v1/ask and by the CLI
type Response struct {
	Answer      string           `json:"answer"`
	SQL         string           `json:"sql,omitempty"`
	Columns     []string         `json:"columns,omitempty"`
	Rows        []map[string]any `json:"rows"`
	Explanation string           `json:"explanation,omitempty"`
	Confidence  float64          `json:"confidence"`
	Warnings    []string         `json:"warnings"`
	SessionID   string           `json:"session_id"`
	Route       string           `json:"route"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// StatsResponse is returned by GET /stats
type StatsResponse struct {
	StartedAt      time.Time        `json:"started_at"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	TotalRequests  int64            `json:"total_requests"`
	ByRoute        map[string]int64 `json:"by_route"`
	Clarifications int64            `json:"clarifications"`
	Blocked        int64            `json:"blocked"`
	Failures       int64            `json:"failures"`
	ActiveSessions int              `json:"active_sessions"`
}

// ValidateResponse is returned by POST /api/v1/validate
type ValidateResponse struct {
	Verdict  string   `json:"verdict"` // "success" | "blocked" | "clarification_needed"
	SQL      string   `json:"sql,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
}

// SchemaTable describes one allow-listed table
type SchemaTable struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	TimeSeries bool     `json:"time_series"`
}

// SchemaResponse is returned by GET /api/v1/schema
type SchemaResponse struct {
	Dialect string        `json:"dialect"`
	RowCap  int           `json:"row_cap"`
	Tables  []SchemaTable `json:"tables"`
}

// HistoryEntry is one row of GET /api/v1/history
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Question   string    `json:"question"`
	Route      string    `json:"route"`
	SQL        string    `json:"sql,omitempty"`
	Confidence float64   `json:"confidence"`
	RowCount   int       `json:"row_count"`
}

// HistoryResponse is returned by GET /api/v1/history
type HistoryResponse struct {
	Status  string         `json:"status"`
	Entries []HistoryEntry `json:"entries"`
}
