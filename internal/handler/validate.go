package handler

import (
	"net/http"

	"github.com/cortexai/askql/internal/metrics"
	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/security"
)

// ValidateHandler runs the guardrail on caller SQL without executing it
type ValidateHandler struct {
	sqlVal      *security.SQLValidator
	auditLogger *security.AuditLogger
}

func NewValidateHandler(sqlVal *security.SQLValidator, auditLogger *security.AuditLogger) *ValidateHandler {
	return &ValidateHandler{sqlVal: sqlVal, auditLogger: auditLogger}
}

// Validate handles POST /api/v1/validate
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	verdict := h.sqlVal.Validate(req.SQL)
	kind := security.VerdictKind(verdict)
	metrics.VerdictsTotal.WithLabelValues(kind).Inc()
	h.auditLogger.LogValidation(req.SQL, security.APIKeyFromContext(r.Context()), kind)

	models.WriteJSON(w, http.StatusOK, VerdictResponse(verdict))
}

// VerdictResponse flattens a verdict for JSON and CLI output.
func VerdictResponse(v security.Verdict) models.ValidateResponse {
	resp := models.ValidateResponse{Verdict: security.VerdictKind(v)}
	switch v := v.(type) {
	case security.Success:
		resp.SQL = v.SQL
		resp.Warnings = v.Warnings
	case security.Blocked:
		resp.Reason = v.Reason
	case security.ClarificationNeeded:
		resp.Prompt = v.Prompt
	}
	return resp
}
