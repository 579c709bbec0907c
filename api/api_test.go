package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"iochunt/config"
	"iochunt/core"
	"iochunt/storage"
	"iochunt/threat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testOrg    = "org-1"
	testSHA256 = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
)

type apiHarness struct {
	api        *API
	sqlite     *storage.SQLite
	indicators *storage.SQLiteIndicatorStorage
	jobs       *storage.SQLiteHuntJobStorage
	matches    *storage.SQLiteMatchStorage
	inventory  *storage.SQLiteInventoryStorage
	logs       *storage.SQLiteLogStorage
	endpoints  *storage.SQLiteEndpointStorage
	engine     *threat.HuntEngine
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000
	return cfg
}

func newTestAPI(t *testing.T) *apiHarness {
	return newTestAPIWithConfig(t, testConfig())
}

func newTestAPIWithConfig(t *testing.T, cfg *config.Config) *apiHarness {
	t.Helper()
	logger := zap.NewNop().Sugar()

	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "api_test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &apiHarness{
		sqlite:     db,
		indicators: storage.NewSQLiteIndicatorStorage(db, logger),
		jobs:       storage.NewSQLiteHuntJobStorage(db, logger),
		matches:    storage.NewSQLiteMatchStorage(db, logger),
		inventory:  storage.NewSQLiteInventoryStorage(db, logger),
		logs:       storage.NewSQLiteLogStorage(db, logger),
		endpoints:  storage.NewSQLiteEndpointStorage(db, logger),
	}

	opts := threat.SourceOptions{ResultCap: 500, Timeout: 5 * time.Second, Breaker: threat.DefaultBreakerConfig()}
	invSource, err := threat.NewInventorySource(h.inventory, opts, logger)
	require.NoError(t, err)
	opts.ResultCap = 100
	logSource, err := threat.NewLogSource(h.logs, opts, logger)
	require.NoError(t, err)
	registry := threat.NewSourceRegistry(nil, invSource, logSource)

	validator, err := threat.NewContextValidator()
	require.NoError(t, err)

	h.engine = threat.NewHuntEngine(h.indicators, h.jobs, h.matches, registry, threat.DefaultHuntConfig(), logger,
		threat.WithContextValidator(validator))
	t.Cleanup(func() { _ = h.engine.Shutdown(5 * time.Second) })

	h.api = NewAPI(cfg, &Dependencies{
		Indicators: h.indicators,
		Jobs:       h.jobs,
		Matches:    h.matches,
		Hunts:      h.engine,
		Search:     threat.NewQuickSearcher(registry, h.endpoints, logger),
		Reviews:    threat.NewMatchReviewer(h.matches, logger),
		HealthChecks: map[string]HealthCheck{
			"sqlite": db.HealthCheck,
		},
	}, logger)
	t.Cleanup(func() { _ = h.api.Stop(context.Background()) })

	return h
}

func (h *apiHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)
	return rr
}

func orgPath(suffix string) string {
	return "/api/v1/orgs/" + testOrg + suffix
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return decode[ErrorResponse](t, rr).Error
}

func (h *apiHarness) seedEndpoints(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for id, host := range map[string]string{"ep-A": "ws-a", "ep-B": "ws-b"} {
		require.NoError(t, h.endpoints.UpsertEndpoint(ctx, &core.Endpoint{ID: id, OrgID: testOrg, Hostname: host, Online: true}))
	}
	require.NoError(t, h.inventory.RecordFile(ctx, &storage.InventoryRecord{
		OrgID: testOrg, EndpointID: "ep-A", FilePath: `C:\Users\bob\Downloads\invoice.exe`, SHA256: testSHA256,
	}))
	require.NoError(t, h.inventory.RecordFile(ctx, &storage.InventoryRecord{
		OrgID: testOrg, EndpointID: "ep-B", FilePath: "/tmp/invoice.exe", SHA256: testSHA256,
	}))
	require.NoError(t, h.inventory.RecordFile(ctx, &storage.InventoryRecord{
		OrgID: testOrg, EndpointID: "ep-A", FilePath: `C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`,
	}))
	require.NoError(t, h.logs.AppendLog(ctx, &storage.LogRecord{
		OrgID: testOrg, EndpointID: "ep-B", LogSource: "sysmon", Message: "Process started: PowerShell.exe -enc AAAA",
	}))
}

func TestHealthCheck(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[HealthResponse](t, rr)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["sqlite"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	h := newTestAPI(t)
	h.api.deps.HealthChecks["redis"] = func(ctx context.Context) error { return errors.New("connection refused") }

	rr := h.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decode[HealthResponse](t, rr)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["redis"])
	assert.Equal(t, "healthy", resp.Components["sqlite"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(t)
	rr := h.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestClassify(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		value    string
		wantKind core.IndicatorKind
		wantAlgo core.HashAlgorithm
	}{
		{"  " + testSHA256 + " ", core.IndicatorKindFileHash, core.HashAlgorithmSHA256},
		{"D41D8CD98F00B204E9800998ECF8427E", core.IndicatorKindFileHash, core.HashAlgorithmMD5},
		{`C:\Windows\Temp\evil.dll`, core.IndicatorKindFilePath, ""},
		{"evil.dll", core.IndicatorKindFileName, ""},
		{"malware", core.IndicatorKindProcessName, ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			rr := h.do(t, "POST", orgPath("/classify"), ValueRequest{Value: tt.value})
			require.Equal(t, http.StatusOK, rr.Code)
			resp := decode[ClassifyResponse](t, rr)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantAlgo, resp.HashAlgorithm)
		})
	}

	rr := h.do(t, "POST", orgPath("/classify"), ValueRequest{Value: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr), "value")
}

func TestRequestID(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(t, "GET", "/health", nil)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(requestIDHeader, "trace-abc_123")
	rr = httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "trace-abc_123", rr.Header().Get(requestIDHeader))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(requestIDHeader, "bad\nid")
	rr = httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)
	assert.NotEqual(t, "bad\nid", rr.Header().Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.API.RateLimit.RequestsPerSecond = 0.001
	cfg.API.RateLimit.Burst = 2
	h := newTestAPIWithConfig(t, cfg)

	assert.Equal(t, http.StatusOK, h.do(t, "GET", "/health", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, "GET", "/health", nil).Code)
	rr := h.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "Too many requests", errorBody(t, rr))

	// Another client has its own bucket
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	other := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestPruneRateLimiters(t *testing.T) {
	h := newTestAPI(t)
	h.do(t, "GET", "/health", nil)
	require.Len(t, h.api.rateLimiters, 1)

	h.api.pruneRateLimiters(time.Now(), time.Hour)
	assert.Len(t, h.api.rateLimiters, 1)

	h.api.pruneRateLimiters(time.Now().Add(2*time.Hour), time.Hour)
	assert.Empty(t, h.api.rateLimiters)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.2 ")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}

func TestStop_Idempotent(t *testing.T) {
	h := newTestAPI(t)
	require.NoError(t, h.api.Stop(context.Background()))
	require.NoError(t, h.api.Stop(context.Background()))
}
