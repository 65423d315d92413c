package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/askql/internal/agent"
	"github.com/cortexai/askql/internal/config"
	"github.com/cortexai/askql/internal/security"
	"github.com/cortexai/askql/internal/service"
	"github.com/cortexai/askql/internal/session"
)

// Components are the long-lived collaborators shared by the HTTP server and
// the CLI. Close releases them in reverse order of construction.
type Components struct {
	Executor  service.Executor
	Store     session.Store
	Locker    *session.Locker
	History   *service.HistoryService // nil when history is disabled
	Validator *security.SQLValidator
	Audit     *security.AuditLogger
	Pipeline  *agent.Pipeline
}

func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	exec, err := newExecutor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	c := &Components{
		Executor:  exec,
		Store:     newStore(cfg),
		Locker:    session.NewLocker(),
		Validator: security.NewSQLValidator(),
		Audit:     security.NewAuditLogger(cfg.EnableAuditLogging),
	}

	if cfg.HistoryEnabled {
		hist, err := service.NewHistoryService(service.ElasticsearchConfig{
			Scheme:      cfg.ElasticsearchScheme,
			Host:        cfg.ElasticsearchHost,
			Port:        cfg.ElasticsearchPort,
			User:        cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.HistoryIndex,
		})
		if err != nil {
			log.Warn().Err(err).Msg("query history unavailable")
		} else {
			c.History = hist
		}
	}

	var piiDetector *security.PIIDetector
	if cfg.EnablePIIDetection {
		piiDetector = security.NewPIIDetector(cfg.PIIKeywords)
	}
	var masker *security.DataMasker
	if cfg.EnableDataMasking {
		masker = security.NewDataMasker(cfg.MaskedColumns)
	}

	pcfg := agent.PipelineConfig{
		Generator:                newGenerator(cfg),
		Executor:                 exec,
		Store:                    c.Store,
		Locker:                   c.Locker,
		Validator:                c.Validator,
		PromptValidator:          security.NewPromptValidator(cfg.MaxQuestionLength),
		PIIDetector:              piiDetector,
		Masker:                   masker,
		Audit:                    c.Audit,
		GeneratorTimeout:         config.Seconds(cfg.GeneratorTimeout),
		MaxConcurrentGenerations: int64(cfg.MaxConcurrentGenerations),
	}
	// an untyped nil keeps the pipeline's nil check meaningful
	if c.History != nil {
		pcfg.History = c.History
	}
	c.Pipeline = agent.NewPipeline(pcfg)

	log.Info().
		Str("executor", cfg.Executor).
		Str("dialect", string(exec.Dialect())).
		Str("llm_provider", cfg.LLMProvider).
		Str("session_backend", cfg.SessionBackend).
		Bool("history_enabled", c.History != nil).
		Bool("data_masking", masker != nil).
		Bool("pii_detection", piiDetector != nil).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	return c, nil
}

// Close waits for pending history writes, then closes the store and executor.
func (c *Components) Close() error {
	c.Pipeline.Wait()
	return errors.Join(c.Store.Close(), c.Executor.Close())
}

func newExecutor(ctx context.Context, cfg *config.Config) (service.Executor, error) {
	timeout := config.Seconds(cfg.QueryTimeout)
	switch cfg.Executor {
	case "postgres":
		return service.NewPostgresExecutor(ctx, cfg.PostgresURL, int32(cfg.PGMaxConns), timeout)
	case "bigquery":
		return service.NewBigQueryExecutor(ctx, service.BigQueryConfig{
			ProjectID:       cfg.GCPProjectID,
			DatasetID:       cfg.BigQueryDataset,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Location:        cfg.BigQueryLocation,
			Timeout:         timeout,
		}, security.NewCostTracker(cfg.MaxQueryBytesProcessed))
	default:
		return service.NewDuckDBExecutor(cfg.DuckDBPath, timeout)
	}
}

func newStore(cfg *config.Config) session.Store {
	ttl := config.Seconds(cfg.SessionTTL)
	if cfg.SessionBackend == "redis" {
		return session.NewRedisStore(session.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       ttl,
		})
	}
	return session.NewMemoryStore(ttl)
}

// newGenerator returns nil when no model is configured; questions the
// deterministic router cannot answer then get a generation-failure response.
func newGenerator(cfg *config.Config) agent.Generator {
	if cfg.LLMProvider == "none" {
		return nil
	}
	if cfg.LLMAPIKey == "" && cfg.LLMBaseURL == "" {
		log.Warn().Str("provider", cfg.LLMProvider).Msg("no LLM API key set - SQL generation disabled")
		return nil
	}
	switch cfg.LLMProvider {
	case "openai":
		return agent.NewOpenAIGenerator(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, cfg.LLMMaxTokens)
	default:
		return agent.NewAnthropicGenerator(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, cfg.LLMMaxTokens)
	}
}
