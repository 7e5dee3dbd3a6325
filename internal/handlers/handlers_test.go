package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-sentinel/internal/command"
	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/fetcher"
	"receipt-sentinel/internal/learning"
	"receipt-sentinel/internal/metrics"
	"receipt-sentinel/internal/model"
	"receipt-sentinel/internal/processor"
	"receipt-sentinel/internal/repository"
	"receipt-sentinel/internal/resolver"
	"receipt-sentinel/internal/scheduler"
)

type noopFetcher struct{}

func (noopFetcher) Fetch(context.Context, model.Account, time.Time, int) ([]model.EmailMessage, error) {
	return nil, nil
}

func (noopFetcher) FetchByID(context.Context, model.Account, string) (*model.EmailMessage, error) {
	return nil, nil
}

func (noopFetcher) Close() error { return nil }

type noopForwarder struct{}

func (noopForwarder) Forward(context.Context, model.EmailMessage, string) error { return nil }
func (noopForwarder) Notify(context.Context, string, string) error              { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.ManualRule{},
		&model.Preference{},
		&model.ProcessedEmail{},
		&model.ProcessingRun{},
		&model.LearningCandidate{},
	))

	repo := repository.New(db)
	det := detector.New(nil)
	res := resolver.New(repo, det)
	eng := learning.New(repo, det, 0.9, 3)
	mf := noopFetcher{}
	accounts := fetcher.NewStaticDirectory([]model.Account{{Email: "monitored@example.com"}})
	cmds := command.NewInterpreter(repo, noopForwarder{}, "operator@example.com")
	m := metrics.NewMetricsWith(prometheus.NewRegistry())

	proc := processor.New(repo, res, eng, cmds, mf, accounts, noopForwarder{}, m, processor.Options{
		ForwardTarget:   "receipts@example.com",
		IntervalMinutes: 60,
		LookbackDays:    1,
		BatchLimit:      50,
		RetentionHours:  24,
	})
	sched := scheduler.New(scheduler.Config{IntervalMinutes: 60, CleanupIntervalHours: 1}, proc)

	h := NewHandlers(repo, res, eng, proc, sched, mf, accounts)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stopped", resp.Metrics["scheduler"])
}

func TestRulesCRUD(t *testing.T) {
	router, repo := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules", ManualRuleRequest{
		EmailPattern: "*@somestore.com",
		Purpose:      "somestore receipts",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rule model.ManualRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	assert.Equal(t, model.DefaultRulePriority, rule.Priority)
	assert.False(t, rule.IsShadowMode)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []model.ManualRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/rules/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	remaining, err := repo.AllRules()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCreateRuleRejectsEmptyPatterns(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/v1/rules", ManualRuleRequest{Purpose: "no patterns"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromoteRule(t *testing.T) {
	router, repo := newTestRouter(t)
	require.NoError(t, repo.CreateRule(&model.ManualRule{
		EmailPattern: "*@somestore.com",
		IsShadowMode: true,
		Priority:     10,
	}))

	w := doJSON(t, router, http.MethodPatch, "/api/v1/rules/1/promote", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rule, err := repo.GetRule(1)
	require.NoError(t, err)
	assert.False(t, rule.IsShadowMode)
}

func TestPreferencesEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/preferences", PreferenceRequest{
		Item: "somestore.com", Type: "blocked_sender",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Re-adding is a no-op 200.
	w = doJSON(t, router, http.MethodPost, "/api/v1/preferences", PreferenceRequest{
		Item: "somestore.com", Type: "blocked_sender",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/preferences", PreferenceRequest{
		Item: "x", Type: "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/preferences?type=blocked_sender", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prefs []model.Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	assert.Len(t, prefs, 1)
}

func TestActionLinks(t *testing.T) {
	router, repo := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/actions/block?item=somestore", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	blocked, err := repo.PreferencesByType(model.PrefBlockedSender)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "somestore", blocked[0].Item)

	w = doJSON(t, router, http.MethodGet, "/api/actions/allow?item=somestore", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/actions/block", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassifyEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/classify", ClassifyRequest{
		Sender:  "noreply@somestore.com",
		Subject: "Your receipt",
		Body:    "Total: $43.10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var trace resolver.Trace
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trace))
	assert.True(t, trace.Decision.Forward)
	assert.NotEmpty(t, trace.Steps)
}

func TestSchedulerEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"stopped"`)

	w = doJSON(t, router, http.MethodPost, "/api/v1/scheduler/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/scheduler/status", nil)
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = doJSON(t, router, http.MethodPost, "/api/v1/scheduler/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmailHistoryEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)
	_, err := repo.RecordProcessedEmail(&model.ProcessedEmail{
		EmailID:     "<r1>",
		Subject:     "Your receipt",
		Status:      model.StatusForwarded,
		ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/api/v1/emails?status=forwarded", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page EmailPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Total)

	w = doJSON(t, router, http.MethodGet, "/api/v1/emails/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunOnceEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/scheduler/run-once", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	runs, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunCompleted, runs[0].Status)
}
