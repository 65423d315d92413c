package models

// AskRequest for POST /api/v1/ask
type AskRequest struct {
	Question  string `json:"question" validate:"required,max=2000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128,printascii"`
}

// ValidateRequest for POST /api/v1/validate (guardrail check without execution)
type ValidateRequest struct {
	SQL string `json:"sql" validate:"required,max=10000"`
}
