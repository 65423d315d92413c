package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/askql/internal/handler"
	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/security"
	"github.com/cortexai/askql/internal/service"
)

type fakeAsker struct {
	sessionID string
	question  string
}

func (a *fakeAsker) Ask(_ context.Context, sessionID, question string) *models.Response {
	a.sessionID, a.question = sessionID, question
	return &models.Response{
		Answer:     "Here are the results of your query.",
		Confidence: models.ConfidenceHigh,
		Warnings:   []string{},
		SessionID:  sessionID,
		Route:      string(service.RouteDeterministicUsers),
	}
}

func post(t *testing.T, h http.HandlerFunc, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// ─── Ask ────────────────────────────────────────────────────────────────────

func TestAskHandler(t *testing.T) {
	asker := &fakeAsker{}
	h := handler.NewAskHandler(asker)

	rr := post(t, h.Ask, `{"question":"How many users from India","session_id":"abc"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", rr.Header().Get("X-Session-ID"))
	assert.Equal(t, "How many users from India", asker.question)

	var resp models.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 0.7, resp.Confidence)
	assert.Equal(t, "abc", resp.SessionID)
	assert.NotNil(t, resp.Warnings)
}

func TestAskHandler_SessionFromHeader(t *testing.T) {
	asker := &fakeAsker{}
	h := handler.NewAskHandler(asker)

	rr := post(t, h.Ask, `{"question":"count"}`, map[string]string{"X-Session-ID": "from-header"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "from-header", asker.sessionID)
}

func TestAskHandler_NewSession(t *testing.T) {
	asker := &fakeAsker{}
	h := handler.NewAskHandler(asker)

	rr := post(t, h.Ask, `{"question":"count"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, asker.sessionID, 36)
	assert.Equal(t, asker.sessionID, rr.Header().Get("X-Session-ID"))
}

func TestAskHandler_BadRequests(t *testing.T) {
	h := handler.NewAskHandler(&fakeAsker{})

	tests := []struct {
		name    string
		body    string
		headers map[string]string
		code    int
		detail  string
	}{
		{"not json", `{`, nil, http.StatusBadRequest, ""},
		{"missing question", `{}`, nil, http.StatusUnprocessableEntity, "question: failed required"},
		{"question too long", `{"question":"` + strings.Repeat("a", 2001) + `"}`, nil, http.StatusUnprocessableEntity, "question: failed max=2000"},
		{"session id not ascii", `{"question":"q","session_id":"séance"}`, nil, http.StatusUnprocessableEntity, "session_id: failed printascii"},
		{"header too long", `{"question":"q"}`, map[string]string{"X-Session-ID": strings.Repeat("x", 129)}, http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, h.Ask, tt.body, tt.headers)
			assert.Equal(t, tt.code, rr.Code)

			var errResp models.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
			assert.Equal(t, "error", errResp.Status)
			if tt.detail != "" {
				assert.Contains(t, errResp.Details, tt.detail)
			}
		})
	}
}

// ─── Validate ───────────────────────────────────────────────────────────────

func TestValidateHandler(t *testing.T) {
	h := handler.NewValidateHandler(security.NewSQLValidator(), security.NewAuditLogger(false))

	tests := []struct {
		name string
		sql  string
		want models.ValidateResponse
	}{
		{
			"limit appended",
			"SELECT id, email FROM users",
			models.ValidateResponse{
				Verdict:  "success",
				SQL:      "SELECT id, email FROM users LIMIT 50",
				Warnings: []string{"LIMIT 50 was automatically applied for safety"},
			},
		},
		{
			"forbidden keyword",
			"DROP TABLE users",
			models.ValidateResponse{Verdict: "blocked", Reason: "Query contains forbidden keyword: drop."},
		},
		{
			"missing window",
			"SELECT id, amount FROM payments LIMIT 5",
			models.ValidateResponse{Verdict: "clarification_needed", Prompt: security.TimeRangePrompt},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(models.ValidateRequest{SQL: tt.sql})
			rr := post(t, h.Validate, string(body), nil)
			require.Equal(t, http.StatusOK, rr.Code)

			var got models.ValidateResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateHandler_EmptySQL(t *testing.T) {
	h := handler.NewValidateHandler(security.NewSQLValidator(), nil)
	rr := post(t, h.Validate, `{"sql":""}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

// ─── Schema, stats, history ─────────────────────────────────────────────────

func TestSchemaHandler(t *testing.T) {
	h := handler.NewSchemaHandler(service.DialectDuckDB)
	rr := httptest.NewRecorder()
	h.Schema(rr, httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.SchemaResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "duckdb", resp.Dialect)
	assert.Equal(t, 50, resp.RowCap)
	require.Len(t, resp.Tables, 4)
	assert.Equal(t, "users", resp.Tables[0].Name)
	assert.False(t, resp.Tables[0].TimeSeries)
	assert.True(t, resp.Tables[1].TimeSeries)
}

type fixedStats models.StatsResponse

func (s fixedStats) Stats() models.StatsResponse { return models.StatsResponse(s) }

func TestStatsHandler(t *testing.T) {
	h := handler.NewStatsHandler(fixedStats{TotalRequests: 3, ByRoute: map[string]int64{"generated": 3}})
	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var resp models.StatsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(3), resp.TotalRequests)
	assert.Equal(t, int64(3), resp.ByRoute["generated"])
}

type fakeHistory struct {
	records []service.HistoryRecord
	err     error
	size    int
}

func (f *fakeHistory) Recent(_ context.Context, size int) ([]service.HistoryRecord, error) {
	f.size = size
	return f.records, f.err
}

func TestHistoryHandler(t *testing.T) {
	hist := &fakeHistory{records: []service.HistoryRecord{{
		Timestamp:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Question:   "How many users from India",
		Route:      "deterministic_users",
		Confidence: 0.7,
		RowCount:   1,
	}}}
	h := handler.NewHistoryHandler(hist)

	rr := httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?size=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, hist.size)

	var resp models.HistoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "How many users from India", resp.Entries[0].Question)

	rr = httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?size=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	hist.err = errors.New("index_not_found_exception")
	rr = httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHistoryHandler_Disabled(t *testing.T) {
	h := handler.NewHistoryHandler(nil)
	rr := httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	ok := handler.HealthCheckFunc(func(context.Context) error { return nil })
	down := handler.HealthCheckFunc(func(context.Context) error { return errors.New("connection refused") })

	h := handler.NewHealthHandler(map[string]handler.HealthChecker{"executor": ok, "history": nil})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"server": "ok", "executor": "ok", "history": "disabled"}, resp.Checks)

	h = handler.NewHealthHandler(map[string]handler.HealthChecker{"executor": ok, "sessions": down})
	rr = httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unavailable: connection refused", resp.Checks["sessions"])
}
