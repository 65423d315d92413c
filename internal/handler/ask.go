package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cortexai/askql/internal/middleware"
	"github.com/cortexai/askql/internal/models"
)

// Asker answers one question for a session.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) *models.Response
}

// AskHandler handles POST /api/v1/ask
type AskHandler struct {
	asker Asker
}

func NewAskHandler(asker Asker) *AskHandler {
	return &AskHandler{asker: asker}
}

// Ask resolves the session from the body, then the X-Session-ID header, and
// starts a new one when neither is set. The id is echoed in the header.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get(middleware.SessionIDHeader)
		if err := validate.Var(sessionID, "omitempty,max=128,printascii"); err != nil {
			models.WriteError(w, http.StatusUnprocessableEntity, "invalid "+middleware.SessionIDHeader+" header")
			return
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp := h.asker.Ask(r.Context(), sessionID, req.Question)
	w.Header().Set(middleware.SessionIDHeader, resp.SessionID)
	models.WriteJSON(w, http.StatusOK, resp)
}
