package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/askql/internal/config"
	"github.com/cortexai/askql/internal/handler"
	"github.com/cortexai/askql/internal/metrics"
	"github.com/cortexai/askql/internal/middleware"
)

type Server struct {
	cfg        *config.Config
	http       *http.Server
	components *Components
	limiter    *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	components, err := NewComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}
	return NewWithComponents(cfg, components), nil
}

// NewWithComponents serves already constructed components. The server owns
// them from here on and closes them on shutdown.
func NewWithComponents(cfg *config.Config, components *Components) *Server {
	s := &Server{
		cfg:        cfg,
		components: components,
		limiter:    middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	}
	metrics.BuildInfo.WithLabelValues(handler.Version).Set(1)

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup(time.Minute)
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)
		if closeErr := s.components.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing components")
		} else {
			log.Info().Msg("components closed")
		}
		return err
	case err := <-errCh:
		if closeErr := s.components.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing components")
		}
		return err
	}
}
