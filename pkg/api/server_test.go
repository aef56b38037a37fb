package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/persona-insights/pkg/httputil"
	"github.com/platinummonkey/persona-insights/pkg/middleware"
	"github.com/platinummonkey/persona-insights/pkg/observability"
)

func newTestServer(t *testing.T, svc AnalyticsService) (*Server, *prometheus.Registry, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	registry := prometheus.NewRegistry()
	server := NewServer(svc,
		WithLogger(observability.NewLogger(observability.DebugLevel, &logs)),
		WithMetrics(observability.NewMetrics(registry), registry),
		WithHealthChecker(observability.NewHealthChecker(nil, nil, "test")),
		WithCORSOrigins([]string{"https://dashboard.example.com"}),
	)
	return server, registry, &logs
}

func TestServer_ServesAnalyticsWithRequestID(t *testing.T) {
	server, _, logs := newTestServer(t, &fakeService{})

	req := httptest.NewRequest("GET", "/api/v1/analytics/users/u1", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-7", w.Header().Get(httputil.RequestIDHeader))
	assert.Contains(t, logs.String(), `"request_id":"req-7"`)
}

func TestServer_HealthEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t, &fakeService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`, path)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t, &fakeService{})

	server.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/analytics/creators/c1", nil))

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `insights_http_requests_total{method="GET",route="/api/v1/analytics/creators/{id}",status="200"} 1`)
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	server, _, _ := newTestServer(t, &fakeService{})

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "route not found")
}

func TestServer_RejectsNonJSONBody(t *testing.T) {
	svc := &fakeService{}
	server, _, _ := newTestServer(t, svc)

	req := httptest.NewRequest("POST", "/api/v1/analytics/sessions", strings.NewReader("user_id=u1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastSession.UserID)
}

func TestServer_CORSPreflight(t *testing.T) {
	server, _, _ := newTestServer(t, &fakeService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analytics/sessions", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimitsAnalyticsRoutesOnly(t *testing.T) {
	server := NewServer(&fakeService{},
		WithLogger(observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})),
		WithHealthChecker(observability.NewHealthChecker(nil, nil, "test")),
		WithRateLimiter(middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
		})),
	)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/analytics/users/u1", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
