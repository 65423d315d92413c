package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cortexai/askql/internal/models"
)

// Version is reported by /health and the CLI. Set at build time.
var Version = "0.1.0"

// HealthChecker is implemented by dependencies that can report connectivity
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// HealthCheckFunc adapts a ping function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) TestConnection(ctx context.Context) error { return f(ctx) }

// HealthHandler handles GET /health. Nil checkers are reported as disabled.
type HealthHandler struct {
	checks map[string]HealthChecker
}

func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health checks every dependency concurrently and answers 503 when any fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	checks := map[string]string{"server": "ok"}
	degraded := false

	var g errgroup.Group
	for name, c := range h.checks {
		if c == nil {
			mu.Lock()
			checks[name] = "disabled"
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			err := c.TestConnection(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "unavailable: " + err.Error()
				degraded = true
			} else {
				checks[name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	status, code := "healthy", http.StatusOK
	if degraded {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	models.WriteJSON(w, code, models.HealthResponse{
		Status:  status,
		Version: Version,
		Checks:  checks,
	})
}
