package handler

import (
	"net/http"

	"github.com/cortexai/askql/internal/models"
)

// StatsSource reports pipeline counters.
type StatsSource interface {
	Stats() models.StatsResponse
}

// StatsHandler handles GET /stats
type StatsHandler struct {
	src StatsSource
}

func NewStatsHandler(src StatsSource) *StatsHandler {
	return &StatsHandler{src: src}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.src.Stats())
}
