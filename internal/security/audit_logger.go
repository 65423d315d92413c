package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// AskEvent is one pipeline turn as seen by the audit log.
type AskEvent struct {
	SessionID       string
	Question        string
	APIKey          string
	SQL             string
	Route           string
	Confidence      float64
	RowCount        int
	Warnings        []string
	ExecutionTimeMs int64
}

// LogAsk records one pipeline turn
func (a *AuditLogger) LogAsk(e AskEvent) {
	if a == nil || !a.enabled {
		return
	}
	sqlHash := ""
	if e.SQL != "" {
		sqlHash = hashStr(e.SQL)[:16]
	}

	log.Info().
		Str("event", "ask_audit").
		Str("session_hash", hashStr(e.SessionID)[:16]).
		Str("question_hash", hashStr(e.Question)[:16]).
		Str("api_key_hash", hashStr(e.APIKey)[:16]).
		Str("sql_hash", sqlHash).
		Str("route", e.Route).
		Float64("confidence", e.Confidence).
		Int("row_count", e.RowCount).
		Strs("warnings", e.Warnings).
		Int64("execution_time_ms", e.ExecutionTimeMs).
		Msg("audit")
}

// LogValidation records a standalone guardrail check
func (a *AuditLogger) LogValidation(sql, apiKey, verdict string) {
	if a == nil || !a.enabled {
		return
	}
	log.Info().
		Str("event", "validate_audit").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("verdict", verdict).
		Msg("audit")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

// HashID shortens an identifier to a stable, non-reversible token.
func HashID(s string) string {
	return hashStr(s)[:16]
}
