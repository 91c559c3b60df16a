package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/blogem/reqtel/authenticator"
	"github.com/blogem/reqtel/models"
	"github.com/blogem/reqtel/repositories"
	"github.com/blogem/reqtel/repositories/mocks"
	"github.com/blogem/reqtel/reqctx"
	"github.com/blogem/reqtel/services"
	"github.com/blogem/reqtel/tracker"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAnomalyService struct {
	since  time.Time
	result *models.ClassificationResult
	err    error
}

func (f *fakeAnomalyService) Classify(records []models.AuditRecord) map[string]models.AnomalyFlags {
	return nil
}

func (f *fakeAnomalyService) ClassifyRecent(ctx context.Context, since time.Time) (*models.ClassificationResult, error) {
	f.since = since
	return f.result, f.err
}

type fakeProvider struct {
	exchangeErr error
	claims      authenticator.Claims
}

func (p *fakeProvider) GetAuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code string) (*authenticator.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &authenticator.Token{AccessToken: "at", IDToken: "id"}, nil
}

func (p *fakeProvider) GetClaims(ctx context.Context, token *authenticator.Token) (authenticator.Claims, error) {
	return p.claims, nil
}

type testEnv struct {
	repo     *mocks.MockAuditRepository
	requests *tracker.Tracker
	failures *tracker.Tracker
	anomaly  *fakeAnomalyService
	provider *fakeProvider
	router   http.Handler
	drafts   []*reqctx.AuditDraft
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     mocks.NewMockAuditRepository(t),
		requests: tracker.New(),
		failures: tracker.New(),
		anomaly:  &fakeAnomalyService{result: &models.ClassificationResult{Success: true}},
		provider: &fakeProvider{claims: authenticator.Claims{"sub": "auth0|admin", "nickname": "root"}},
	}

	srvs := &services.Services{
		Anomaly:    env.anomaly,
		Monitoring: services.NewMonitoringService(env.requests, env.repo, nil),
		LoginAudit: services.NewLoginAuditService(env.failures, 15*time.Minute),
	}
	ctrl := NewControllers(srvs, Options{Auth: env.provider, Logger: zaptest.NewLogger(t)})
	ctrl.Admin.now = func() time.Time { return fixedNow }

	sessioner, err := session.Sessioner(session.Options{Provider: "memory"})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sessioner)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			draft := reqctx.NewAuditDraft(models.AuditRecord{CorrelationID: "test"})
			env.drafts = append(env.drafts, draft)
			next.ServeHTTP(w, r.WithContext(reqctx.WithAuditDraft(r.Context(), draft)))
		})
	})

	r.Get("/health", ctrl.Health.Check)
	r.Get("/login", ctrl.Auth.Login)
	r.Get("/callback", ctrl.Auth.Callback)
	r.Post("/logout", ctrl.Auth.Logout)
	r.Get("/api/auth/status", ctrl.Auth.Status)
	r.Get("/api/monitoring/stats/{source}", ctrl.Monitoring.SourceStats)
	r.Get("/api/monitoring/status", ctrl.Monitoring.Status)
	r.Get("/api/monitoring/load", ctrl.Monitoring.Load)
	r.Get("/api/admin/logs", ctrl.Admin.Logs)
	r.Get("/api/admin/logs/{id}", ctrl.Admin.Log)
	r.Get("/api/admin/summary", ctrl.Admin.Summary)
	r.Post("/api/admin/classify", ctrl.Admin.Classify)
	r.Get("/api/system/logins", ctrl.System.Logins)
	r.Get("/api/system/metrics", ctrl.System.Metrics)
	r.Get("/api/system/raw", ctrl.System.Raw)
	env.router = r

	return env
}

func (e *testEnv) do(method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "198.51.100.4:5555"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) lastRecord() models.AuditRecord {
	return e.drafts[len(e.drafts)-1].Snapshot()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestAuth_LoginCallbackFlow(t *testing.T) {
	env := newTestEnv(t)

	login := env.do(http.MethodGet, "/login")
	require.Equal(t, http.StatusTemporaryRedirect, login.Code)
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	cookies := login.Result().Cookies()

	callback := env.do(http.MethodGet, "/callback?code=abc&state="+url.QueryEscape(state), cookies...)
	assert.Equal(t, http.StatusSeeOther, callback.Code)

	record := env.lastRecord()
	require.NotNil(t, record.AuthSuccess)
	assert.True(t, *record.AuthSuccess)
	assert.Equal(t, 0, *record.FailedAttempts)
	require.NotNil(t, record.UserID)
	assert.Equal(t, "auth0|admin", *record.UserID)

	status := decode(t, env.do(http.MethodGet, "/api/auth/status", cookies...))
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, "root", status["user"].(map[string]any)["nickname"])

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/logout", cookies...).Code)
	status = decode(t, env.do(http.MethodGet, "/api/auth/status", cookies...))
	assert.Equal(t, false, status["authenticated"])
}

func TestAuth_CallbackFailuresAreCounted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/callback?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	first := env.lastRecord()
	require.NotNil(t, first.AuthSuccess)
	assert.False(t, *first.AuthSuccess)
	assert.Equal(t, 1, *first.FailedAttempts)

	env.provider.exchangeErr = errors.New("invalid_grant")
	login := env.do(http.MethodGet, "/login")
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)

	rec = env.do(http.MethodGet, "/callback?code=bad&state="+url.QueryEscape(location.Query().Get("state")), login.Result().Cookies()...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	second := env.lastRecord()
	assert.False(t, *second.AuthSuccess)
	assert.Equal(t, 2, *second.FailedAttempts)
	assert.Nil(t, second.UserID)
}

func TestAuth_DisabledProvider(t *testing.T) {
	ctrl := NewAuthController(nil, services.NewLoginAuditService(tracker.New(), time.Minute), 0, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	ctrl.Login(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMonitoring_SourceStats(t *testing.T) {
	env := newTestEnv(t)
	env.requests.Record("10.0.0.1")
	env.requests.Record("10.0.0.1")
	env.failures.Record("10.0.0.1")

	body := decode(t, env.do(http.MethodGet, "/api/monitoring/stats/10.0.0.1?window=5"))
	assert.Equal(t, "10.0.0.1", body["source"])
	assert.Equal(t, float64(1), body["failed_logins"])
	assert.Equal(t, float64(2), body["requests_per_minute"])
	assert.Equal(t, float64(2), body["total_tracked_requests"])
	assert.Equal(t, float64(5), body["window_minutes"])
	assert.Equal(t, float64(2), body["requests_in_window"])

	unknown := decode(t, env.do(http.MethodGet, "/api/monitoring/stats/10.9.9.9"))
	assert.Nil(t, unknown["time_since_last_request_ms"])
	assert.NotContains(t, unknown, "window_minutes")
	assert.Equal(t, float64(0), unknown["failed_logins"])

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/monitoring/stats/10.0.0.1?window=abc").Code)
}

func TestMonitoring_StatusAndLoad(t *testing.T) {
	env := newTestEnv(t)
	env.repo.EXPECT().List(mock.Anything, repositories.AuditFilter{AuthOnly: true, Limit: 10}).Return(nil, nil)

	status := decode(t, env.do(http.MethodGet, "/api/monitoring/status"))
	assert.Equal(t, "fallback", status["provider"])

	load := decode(t, env.do(http.MethodGet, "/api/monitoring/load"))
	assert.Len(t, load["load"], 2)
	assert.Empty(t, load["localLogins"])
}

func TestAdmin_Logs(t *testing.T) {
	env := newTestEnv(t)

	records := []models.AuditRecord{{CorrelationID: "a", Endpoint: "/x", AnomalyFlags: models.AnomalyFlags{FlaggedForReview: true}}}
	env.repo.EXPECT().List(mock.Anything, repositories.AuditFilter{Limit: 5, FlaggedOnly: true, Source: "10.0.0.1"}).
		Return(records, nil)

	rec := env.do(http.MethodGet, "/api/admin/logs?limit=5&flagged_only=true&source=10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "a", logs[0].(map[string]any)["request_id"])
}

func TestAdmin_LogsSinceAndDefaults(t *testing.T) {
	env := newTestEnv(t)

	since := fixedNow.Add(-2 * time.Hour)
	env.repo.EXPECT().List(mock.Anything, repositories.AuditFilter{Limit: defaultListLimit, Since: &since}).
		Return(nil, nil)

	rec := env.do(http.MethodGet, "/api/admin/logs?since=2h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["logs"])
}

func TestAdmin_LogsBadParams(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/admin/logs?limit=0",
		"/api/admin/logs?limit=many",
		"/api/admin/logs?offset=-1",
		"/api/admin/logs?since=yesterday",
	} {
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, target).Code, target)
	}
}

func TestAdmin_Log(t *testing.T) {
	env := newTestEnv(t)

	env.repo.EXPECT().GetByCorrelationID(mock.Anything, "missing").Return(nil, repositories.ErrNotFound)
	env.repo.EXPECT().GetByCorrelationID(mock.Anything, "broken").Return(nil, errors.New("disk on fire"))
	env.repo.EXPECT().GetByCorrelationID(mock.Anything, "found").
		Return(&models.AuditRecord{CorrelationID: "found", Endpoint: "/"}, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/admin/logs/missing").Code)
	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodGet, "/api/admin/logs/broken").Code)

	rec := env.do(http.MethodGet, "/api/admin/logs/found")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "found", decode(t, rec)["request_id"])
}

func TestAdmin_Summary(t *testing.T) {
	env := newTestEnv(t)
	env.repo.EXPECT().Summary(mock.Anything).Return(&repositories.Summary{Total: 7, Flagged: 2, FailedAuth: 1}, nil)

	body := decode(t, env.do(http.MethodGet, "/api/admin/summary"))
	assert.Equal(t, float64(7), body["total"])
	assert.Equal(t, float64(2), body["flagged"])
}

func TestAdmin_Classify(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/classify")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), env.anomaly.since)
	assert.Equal(t, true, decode(t, rec)["success"])

	env.do(http.MethodPost, "/api/admin/classify?since=2026-02-28T00:00:00Z")
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), env.anomaly.since)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/admin/classify?since=-1h").Code)

	env.anomaly.err = errors.New("store unavailable")
	assert.Equal(t, http.StatusInternalServerError, env.do(http.MethodPost, "/api/admin/classify").Code)
}

func TestAdmin_ClassifyLogsAdmin(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	anomaly := &fakeAnomalyService{result: &models.ClassificationResult{Success: true}}
	ctrl := NewAdminController(&services.Services{Anomaly: anomaly}, time.Hour, zap.New(core))
	ctrl.now = func() time.Time { return fixedNow }

	req := httptest.NewRequest(http.MethodPost, "/api/admin/classify", nil)
	req = req.WithContext(reqctx.SetUserID(req.Context(), "auth0|admin"))
	rec := httptest.NewRecorder()
	ctrl.Classify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := logs.FilterMessage("Manual classification requested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "auth0|admin", entries[0].ContextMap()["admin"])
	assert.Equal(t, fixedNow.Add(-time.Hour), anomaly.since)
}

func TestSystem_Logins(t *testing.T) {
	env := newTestEnv(t)

	logins := []models.AuditRecord{
		{CorrelationID: "l1", Endpoint: "/callback", AuthSuccess: boolPtr(false), FailedAttempts: intPtr(3)},
	}
	env.repo.EXPECT().List(mock.Anything, repositories.AuditFilter{AuthOnly: true, Limit: defaultLoginLimit}).
		Return(logins, nil)

	body := decode(t, env.do(http.MethodGet, "/api/system/logins"))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["count"])
}

func TestSystem_LoginsError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.EXPECT().List(mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	rec := env.do(http.MethodGet, "/api/system/logins?limit=3")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "connection refused", body["message"])
}

func TestSystem_MetricsAndRaw(t *testing.T) {
	env := newTestEnv(t)
	env.repo.EXPECT().List(mock.Anything, repositories.AuditFilter{Limit: 20}).Return(nil, nil)

	metrics := decode(t, env.do(http.MethodGet, "/api/system/metrics"))
	assert.Equal(t, "success", metrics["status"])
	assert.Equal(t, "N/A", metrics["metrics"].(map[string]any)["memory_usage"])

	raw := decode(t, env.do(http.MethodGet, "/api/system/raw?limit=20"))
	assert.Equal(t, []any{}, raw["data"])
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("90m", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(-90*time.Minute), got)

	_, err = parseSince("0s", fixedNow)
	assert.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
