package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/cortexai/askql/internal/metrics"
	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/security"
	"github.com/cortexai/askql/internal/service"
	"github.com/cortexai/askql/internal/session"
)

var tracer = otel.Tracer("github.com/cortexai/askql/internal/agent")

var errNoGenerator = errors.New("no generator configured")

const (
	answerClarification = "I need more information to answer this."
	answerResults       = "Here are the results of your query."

	explainDeterministic = "Query executed via deterministic routing."
	explainGuarded       = "Query executed safely with guardrails applied."
	explainBlocked       = "Query was blocked for safety reasons."
	explainExecFailed    = "Query execution failed."
	explainGenFailed     = "Failed to generate SQL from the model."
	explainInternal      = "The question could not be answered."

	warnDeterministicFailed = "Deterministic path execution failed."
	warnGenerationFailed    = "Model generation failed; please try rephrasing your question."
	warnExecutionFailed     = "Query failed to execute. Please adjust your request."
)

// HistoryRecorder receives every finished turn.
type HistoryRecorder interface {
	Record(ctx context.Context, rec service.HistoryRecord) error
}

// PipelineConfig wires the collaborators of a Pipeline. Executor and Store
// are required; nil optional fields get defaults or are skipped.
type PipelineConfig struct {
	Generator       Generator
	Executor        service.Executor
	Store           session.Store
	Locker          *session.Locker
	Validator       *security.SQLValidator
	PromptValidator *security.PromptValidator
	PIIDetector     *security.PIIDetector
	Masker          *security.DataMasker
	Audit           *security.AuditLogger
	History         HistoryRecorder
	Stats           *Stats

	GeneratorTimeout         time.Duration
	MaxConcurrentGenerations int64
	HistoryTimeout           time.Duration
}

// Pipeline answers one question per call: screening, follow-up resolution,
// clarification, deterministic routing or generation, guardrail and execution.
type Pipeline struct {
	gen       Generator
	exec      service.Executor
	store     session.Store
	locks     *session.Locker
	router    *service.DeterministicRouter
	validator *security.SQLValidator
	screen    *security.PromptValidator
	pii       *security.PIIDetector
	masker    *security.DataMasker
	audit     *security.AuditLogger
	history   HistoryRecorder
	stats     *Stats

	genTimeout     time.Duration
	historyTimeout time.Duration
	sem            *semaphore.Weighted
	pending        sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Locker == nil {
		cfg.Locker = session.NewLocker()
	}
	if cfg.Validator == nil {
		cfg.Validator = security.NewSQLValidator()
	}
	if cfg.PromptValidator == nil {
		cfg.PromptValidator = security.NewPromptValidator(0)
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 4
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 5 * time.Second
	}

	return &Pipeline{
		gen:            cfg.Generator,
		exec:           cfg.Executor,
		store:          cfg.Store,
		locks:          cfg.Locker,
		router:         service.NewDeterministicRouter(cfg.Executor.Dialect()),
		validator:      cfg.Validator,
		screen:         cfg.PromptValidator,
		pii:            cfg.PIIDetector,
		masker:         cfg.Masker,
		audit:          cfg.Audit,
		history:        cfg.History,
		stats:          cfg.Stats,
		genTimeout:     cfg.GeneratorTimeout,
		historyTimeout: cfg.HistoryTimeout,
		sem:            semaphore.NewWeighted(cfg.MaxConcurrentGenerations),
	}
}

// Stats returns the current counters.
func (p *Pipeline) Stats() models.StatsResponse {
	return p.stats.Snapshot(p.locks.Active())
}

// Dialect is the SQL dialect of the configured executor.
func (p *Pipeline) Dialect() service.Dialect { return p.exec.Dialect() }

// Wait blocks until background history writes have finished.
func (p *Pipeline) Wait() { p.pending.Wait() }

// turn carries per-request state through the pipeline stages.
type turn struct {
	sessionID  string
	question   string
	combined   string
	normalized string
	route      service.Route
	outcome    string
}

// Ask runs one turn for a session. It never returns nil and never panics;
// every failure becomes a Response.
func (p *Pipeline) Ask(ctx context.Context, sessionID, question string) (resp *models.Response) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.ask")
	defer span.End()

	unlock := p.locks.Lock(sessionID)
	defer unlock()

	t := &turn{sessionID: sessionID, question: question, route: service.RouteRejected}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session_id", sessionID).Msg("pipeline panic")
			span.SetStatus(codes.Error, "panic")
			t.outcome = OutcomeGenerationFailed
			resp = &models.Response{Explanation: explainInternal, Confidence: models.ConfidenceNone}
		}
		resp.SessionID = sessionID
		resp.Route = string(t.route)
		if resp.Warnings == nil {
			resp.Warnings = []string{}
		}
		if resp.Rows == nil {
			resp.Rows = []map[string]any{}
		}
		span.SetAttributes(
			attribute.String("askql.route", resp.Route),
			attribute.String("askql.outcome", t.outcome),
			attribute.Float64("askql.confidence", resp.Confidence),
		)
		p.finish(ctx, t, resp, time.Since(start))
	}()

	return p.run(ctx, t)
}

func (p *Pipeline) run(ctx context.Context, t *turn) *models.Response {
	if reason, ok := p.admit(t.question); !ok {
		t.outcome = OutcomeBlocked
		return &models.Response{
			Explanation: explainBlocked,
			Confidence:  models.ConfidenceNone,
			Warnings:    []string{reason},
		}
	}

	pending, hasPending, err := p.store.Get(ctx, t.sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", t.sessionID).Msg("pending clarification lookup failed")
		hasPending = false
	}
	t.combined = session.Resolve(pending, hasPending, t.question)
	if hasPending {
		if err := p.store.Clear(ctx, t.sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", t.sessionID).Msg("failed to clear pending clarification")
		}
	}

	t.normalized = service.Normalize(t.combined)
	signals := service.ApplyOverrides(t.normalized, service.ClassifyIntent(t.normalized))

	if prompt, ok := session.NeedsClarification(t.normalized, signals); ok {
		return p.clarify(ctx, t, prompt, nil)
	}

	if plan, ok := p.router.Route(t.normalized, signals); ok {
		t.route = plan.Route
		log.Debug().Str("route", string(plan.Route)).Str("reasoning", plan.Reasoning).Msg("deterministic plan")
		return p.deterministic(ctx, t, plan.SQL)
	}

	t.route = service.RouteGenerated
	return p.generated(ctx, t, signals)
}

// admit screens the raw question. The pending slot is not touched when a
// question is rejected here.
func (p *Pipeline) admit(question string) (string, bool) {
	if res := p.screen.Validate(question); !res.Valid {
		return res.Message, false
	}
	if p.pii != nil {
		if found, kw := p.pii.Detect(question); found {
			return fmt.Sprintf("question asks for sensitive data: %s", kw), false
		}
	}
	return "", true
}

// clarify arms the pending slot with the combined question and asks back.
func (p *Pipeline) clarify(ctx context.Context, t *turn, prompt string, warnings []string) *models.Response {
	t.route = service.RouteClarification
	t.outcome = OutcomeClarification
	err := p.store.Set(ctx, t.sessionID, session.Pending{Question: t.combined, Prompt: prompt})
	if err != nil {
		log.Warn().Err(err).Str("session_id", t.sessionID).Msg("failed to store pending clarification")
	}
	return &models.Response{
		Answer:      answerClarification,
		Explanation: prompt,
		Confidence:  models.ConfidenceLow,
		Warnings:    warnings,
	}
}

func (p *Pipeline) deterministic(ctx context.Context, t *turn, sql string) *models.Response {
	verdict := p.validate(sql)
	switch v := verdict.(type) {
	case security.ClarificationNeeded:
		return p.clarify(ctx, t, v.Prompt, nil)
	case security.Success:
		switch out := p.execute(ctx, v.SQL).(type) {
		case service.Executed:
			t.outcome = OutcomeAnswered
			return p.results(out.Result, v.SQL, explainDeterministic, v.Warnings)
		case service.ExecutionFailed:
			t.outcome = OutcomeExecutionFailed
			log.Warn().Err(out.Err).Str("route", string(t.route)).Msg("deterministic execution failed")
			return &models.Response{
				SQL:         v.SQL,
				Explanation: explainExecFailed,
				Confidence:  models.ConfidenceLow,
				Warnings:    append(v.Warnings, warnDeterministicFailed),
			}
		}
	}
	return p.blocked(t, verdict)
}

func (p *Pipeline) generated(ctx context.Context, t *turn, signals service.IntentSignals) *models.Response {
	prompt := BuildPrompt(p.exec.Dialect(), t.normalized, signals)
	raw, err := p.generate(ctx, prompt)
	if err != nil {
		t.outcome = OutcomeGenerationFailed
		log.Warn().Err(err).Msg("sql generation failed")
		return &models.Response{
			Explanation: explainGenFailed,
			Confidence:  models.ConfidenceNone,
			Warnings:    []string{warnGenerationFailed},
		}
	}

	verdict := p.validate(ExtractStatement(raw))
	switch v := verdict.(type) {
	case security.ClarificationNeeded:
		return p.clarify(ctx, t, v.Prompt, nil)
	case security.Success:
		switch out := p.execute(ctx, v.SQL).(type) {
		case service.Executed:
			t.outcome = OutcomeAnswered
			return p.results(out.Result, v.SQL, explainGuarded, v.Warnings)
		case service.ExecutionFailed:
			t.outcome = OutcomeExecutionFailed
			log.Warn().Err(out.Err).Msg("generated query failed")
			return &models.Response{
				SQL:         v.SQL,
				Explanation: explainExecFailed,
				Confidence:  models.ConfidenceLow,
				Warnings:    append(v.Warnings, warnExecutionFailed),
			}
		}
	}
	return p.blocked(t, verdict)
}

func (p *Pipeline) blocked(t *turn, verdict security.Verdict) *models.Response {
	t.outcome = OutcomeBlocked
	reason := explainBlocked
	if b, ok := verdict.(security.Blocked); ok && b.Reason != "" {
		reason = b.Reason
	}
	return &models.Response{
		Explanation: explainBlocked,
		Confidence:  models.ConfidenceNone,
		Warnings:    []string{reason},
	}
}

func (p *Pipeline) results(res *service.QueryResult, sql, fallback string, warnings []string) *models.Response {
	explanation := fallback
	if len(res.Columns) > 0 && len(res.Rows) > 0 {
		explanation = fmt.Sprintf("Returned %d rows with columns: %s.", len(res.Rows), strings.Join(res.Columns, ", "))
	}
	return &models.Response{
		Answer:      answerResults,
		SQL:         sql,
		Columns:     res.Columns,
		Rows:        p.masker.MaskRows(res.Rows),
		Explanation: explanation,
		Confidence:  models.ConfidenceHigh,
		Warnings:    warnings,
	}
}

func (p *Pipeline) validate(sql string) security.Verdict {
	verdict := p.validator.Validate(sql)
	metrics.VerdictsTotal.WithLabelValues(security.VerdictKind(verdict)).Inc()
	return verdict
}

// generate makes one bounded generator call. Waiting for a slot counts
// against the same timeout as the call itself.
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	if p.gen == nil {
		return "", errNoGenerator
	}

	ctx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "pipeline.generate")
	defer span.End()
	span.SetAttributes(attribute.String("askql.provider", p.gen.Name()))

	if err := p.sem.Acquire(ctx, 1); err != nil {
		span.SetStatus(codes.Error, "no generator slot")
		return "", fmt.Errorf("wait for generator slot: %w", err)
	}
	defer p.sem.Release(1)

	metrics.GenerationsInFlight.Inc()
	defer metrics.GenerationsInFlight.Dec()

	start := time.Now()
	raw, err := p.gen.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrEmptyGeneration
	}
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.GenerationDuration.WithLabelValues(p.gen.Name(), status).Observe(time.Since(start).Seconds())
	return raw, err
}

func (p *Pipeline) execute(ctx context.Context, sql string) service.Outcome {
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	start := time.Now()
	out := service.Run(ctx, p.exec, sql)
	status := "ok"
	if failed, ok := out.(service.ExecutionFailed); ok {
		status = "error"
		span.RecordError(failed.Err)
		span.SetStatus(codes.Error, failed.Err.Error())
	}
	metrics.ExecutionDuration.WithLabelValues(string(p.exec.Dialect()), status).Observe(time.Since(start).Seconds())
	return out
}

// finish records stats, metrics, the audit entry and query history.
func (p *Pipeline) finish(ctx context.Context, t *turn, resp *models.Response, elapsed time.Duration) {
	p.stats.Record(resp.Route, t.outcome)
	metrics.AsksTotal.WithLabelValues(resp.Route, t.outcome).Inc()
	metrics.AskDuration.WithLabelValues(resp.Route).Observe(elapsed.Seconds())

	p.audit.LogAsk(security.AskEvent{
		SessionID:       t.sessionID,
		Question:        t.question,
		APIKey:          security.APIKeyFromContext(ctx),
		SQL:             resp.SQL,
		Route:           resp.Route,
		Confidence:      resp.Confidence,
		RowCount:        len(resp.Rows),
		Warnings:        resp.Warnings,
		ExecutionTimeMs: elapsed.Milliseconds(),
	})

	log.Info().
		Str("route", resp.Route).
		Str("outcome", t.outcome).
		Float64("confidence", resp.Confidence).
		Int("rows", len(resp.Rows)).
		Dur("elapsed", elapsed).
		Msg("ask")

	if p.history == nil {
		return
	}
	rec := service.HistoryRecord{
		Timestamp:   time.Now().UTC(),
		SessionHash: security.HashID(t.sessionID),
		Question:    t.question,
		Normalized:  t.normalized,
		Route:       resp.Route,
		SQL:         resp.SQL,
		Confidence:  resp.Confidence,
		RowCount:    len(resp.Rows),
		Warnings:    resp.Warnings,
		DurationMs:  elapsed.Milliseconds(),
	}
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		hctx, cancel := context.WithTimeout(context.Background(), p.historyTimeout)
		defer cancel()
		if err := p.history.Record(hctx, rec); err != nil {
			log.Warn().Err(err).Msg("failed to record query history")
		}
	}()
}
