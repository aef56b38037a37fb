package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Analytics operation metrics
	AnalyticsOperationsTotal   *prometheus.CounterVec
	AnalyticsOperationDuration *prometheus.HistogramVec

	// Forecast and benchmark metrics
	ForecastsTotal            *prometheus.CounterVec
	ForecastConfidence        prometheus.Histogram
	BenchmarkGenerationsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Aggregation job metrics
	AggregationRunsTotal   *prometheus.CounterVec
	AggregationLastSuccess prometheus.Gauge
	RevenueAlertsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AnalyticsOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_analytics_operations_total",
				Help: "Total number of analytics operations",
			},
			[]string{"operation", "status"},
		),
		AnalyticsOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_analytics_operation_duration_seconds",
				Help:    "Analytics operation duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		ForecastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_forecasts_total",
				Help: "Total number of revenue forecasts by method",
			},
			[]string{"method"},
		),
		ForecastConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_forecast_confidence",
				Help:    "Confidence of the first forecast period",
				Buckets: []float64{.3, .4, .5, .6, .7, .8, .9, 1},
			},
		),
		BenchmarkGenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_benchmark_generations_total",
				Help: "Total number of benchmarks generated",
			},
			[]string{"tier"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "layer"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		AggregationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_aggregation_runs_total",
				Help: "Total number of scheduled aggregation runs",
			},
			[]string{"job", "status"},
		),
		AggregationLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_aggregation_last_success_timestamp_seconds",
				Help: "Unix time of the last successful aggregation run",
			},
		),
		RevenueAlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_revenue_alerts_total",
				Help: "Total number of revenue alerts raised",
			},
			[]string{"severity"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AnalyticsOperationsTotal,
		m.AnalyticsOperationDuration,
		m.ForecastsTotal,
		m.ForecastConfidence,
		m.BenchmarkGenerationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.AggregationRunsTotal,
		m.AggregationLastSuccess,
		m.RevenueAlertsTotal,
	)

	return m
}

// All Record* helpers accept a nil receiver so callers can run without metrics.

// RecordAnalyticsOperation counts an analytics operation and observes its duration
func (m *Metrics) RecordAnalyticsOperation(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.AnalyticsOperationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.AnalyticsOperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordForecast counts a forecast by method and observes the first-period confidence
func (m *Metrics) RecordForecast(method string, firstConfidence float64) {
	if m == nil {
		return
	}
	m.ForecastsTotal.WithLabelValues(method).Inc()
	m.ForecastConfidence.Observe(firstConfidence)
}

// RecordBenchmarkGeneration counts a generated benchmark
func (m *Metrics) RecordBenchmarkGeneration(tier string) {
	if m == nil {
		return
	}
	m.BenchmarkGenerationsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheHit counts a cache hit at the given layer
func (m *Metrics) RecordCacheHit(cacheType, layer string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cacheType, layer).Inc()
}

// RecordCacheMiss counts a cache miss at the given layer
func (m *Metrics) RecordCacheMiss(cacheType, layer string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType, layer).Inc()
}

// RecordAggregationRun counts a scheduled job run
func (m *Metrics) RecordAggregationRun(job string, err error) {
	if m == nil {
		return
	}
	m.AggregationRunsTotal.WithLabelValues(job, statusLabel(err)).Inc()
	if err == nil {
		m.AggregationLastSuccess.SetToCurrentTime()
	}
}

// RecordRevenueAlert counts a raised revenue alert
func (m *Metrics) RecordRevenueAlert(severity string) {
	if m == nil {
		return
	}
	m.RevenueAlertsTotal.WithLabelValues(severity).Inc()
}

// RecordDBStats copies connection pool gauges from the given counts
func (m *Metrics) RecordDBStats(inUse, idle int) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(inUse))
	m.DBConnectionsIdle.Set(float64(idle))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel uses the matched mux route template to keep label cardinality bounded
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
