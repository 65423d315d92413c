package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/service"
)

// HistoryReader returns recent turns, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, size int) ([]service.HistoryRecord, error)
}

// HistoryHandler handles GET /api/v1/history
type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Recent handles GET /api/v1/history?size=N
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "query history is disabled")
		return
	}

	size := 20
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			models.WriteError(w, http.StatusBadRequest, "size must be between 1 and 100")
			return
		}
		size = n
	}

	records, err := h.history.Recent(r.Context(), size)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "failed to read history: "+err.Error())
		return
	}

	entries := make([]models.HistoryEntry, len(records))
	for i, rec := range records {
		entries[i] = models.HistoryEntry{
			Timestamp:  rec.Timestamp,
			Question:   rec.Question,
			Route:      rec.Route,
			SQL:        rec.SQL,
			Confidence: rec.Confidence,
			RowCount:   rec.RowCount,
		}
	}
	models.WriteJSON(w, http.StatusOK, models.HistoryResponse{Status: "success", Entries: entries})
}
