package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/persona-insights/pkg/httputil"
	"github.com/platinummonkey/persona-insights/pkg/middleware"
	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const (
	serviceName         = "persona-insights"
	defaultMaxBodyBytes = 1 << 20
)

// Server represents our API server
type Server struct {
	router      *mux.Router
	handler     http.Handler
	analytics   *AnalyticsHandlers
	health      *observability.HealthChecker
	limiter     middleware.Limiter
	metrics     *observability.Metrics
	registry    *prometheus.Registry
	logger      *observability.Logger
	corsOrigins []string
	maxBody     int64
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics instruments requests and serves registry on /metrics
func WithMetrics(metrics *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// WithHealthChecker serves /health/live and /health/ready
func WithHealthChecker(health *observability.HealthChecker) Option {
	return func(s *Server) { s.health = health }
}

// WithCORSOrigins sets the origins allowed by the CORS middleware
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimiter throttles the analytics routes per client IP
func WithRateLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithMaxBodyBytes limits request body size
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewServer creates a new API server
func NewServer(service AnalyticsService, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		analytics: NewAnalyticsHandlers(service),
		maxBody:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	var mws []mux.MiddlewareFunc
	if s.limiter != nil {
		mws = append(mws, middleware.RateLimit(s.limiter))
	}
	s.analytics.RegisterRoutes(s.router, mws...)

	if s.health != nil {
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// buildHandler wraps the router in the middleware chain. HTTP metrics are
// installed as router middleware so the matched route template is known.
func (s *Server) buildHandler() http.Handler {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.CORSMiddleware(s.corsOrigins),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.maxBody),
	)
	return otelhttp.NewHandler(chain(s.router), serviceName)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
