package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/httputil"
)

// AnalyticsHandlers provides analytics API endpoints
type AnalyticsHandlers struct {
	service AnalyticsService
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(service AnalyticsService) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		service: service,
	}
}

// RegisterRoutes registers analytics API routes. mws apply to these routes only.
func (h *AnalyticsHandlers) RegisterRoutes(r *mux.Router, mws ...mux.MiddlewareFunc) {
	api := r.PathPrefix("/api/v1/analytics").Subrouter()
	api.Use(mws...)

	// User analytics
	api.HandleFunc("/users/{id}", h.getUserAnalytics).Methods("GET")
	api.HandleFunc("/users/{id}/refresh", h.refreshUserAnalytics).Methods("POST")

	// Creator analytics
	api.HandleFunc("/creators/{id}", h.getCreatorAnalytics).Methods("GET")
	api.HandleFunc("/creators/{id}/refresh", h.refreshCreatorAnalytics).Methods("POST")
	api.HandleFunc("/creators/{id}/forecast", h.getRevenueForecast).Methods("GET")
	api.HandleFunc("/creators/{id}/benchmarks", h.getPerformanceBenchmarks).Methods("GET")
	api.HandleFunc("/creators/{id}/subscribers", h.getSubscriberInsights).Methods("GET")

	// Session ingestion
	api.HandleFunc("/sessions", h.trackSession).Methods("POST")
}

// getUserAnalytics handles GET /api/v1/analytics/users/{id}
func (h *AnalyticsHandlers) getUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.GetUserAnalytics(r.Context(), userID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// refreshUserAnalytics handles POST /api/v1/analytics/users/{id}/refresh
func (h *AnalyticsHandlers) refreshUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	snapshot, err := h.service.UpdateUserAnalytics(r.Context(), userID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, snapshot)
}

// getCreatorAnalytics handles GET /api/v1/analytics/creators/{id}
func (h *AnalyticsHandlers) getCreatorAnalytics(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.GetCreatorAnalytics(r.Context(), creatorID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// refreshCreatorAnalytics handles POST /api/v1/analytics/creators/{id}/refresh
func (h *AnalyticsHandlers) refreshCreatorAnalytics(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	snapshot, err := h.service.UpdateCreatorAnalytics(r.Context(), creatorID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, snapshot)
}

// getRevenueForecast handles GET /api/v1/analytics/creators/{id}/forecast
// Query params:
//   - months: forecast horizon; 0 or absent selects the default, values above the maximum are clamped
func (h *AnalyticsHandlers) getRevenueForecast(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	months, ok := httputil.ParseQueryIntOrError(w, r, "months", 0)
	if !ok {
		return
	}

	forecast, err := h.service.GenerateRevenueForecasting(r.Context(), creatorID, months)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, forecast)
}

// getPerformanceBenchmarks handles GET /api/v1/analytics/creators/{id}/benchmarks
func (h *AnalyticsHandlers) getPerformanceBenchmarks(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.GetPerformanceBenchmarks(r.Context(), creatorID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// getSubscriberInsights handles GET /api/v1/analytics/creators/{id}/subscribers
func (h *AnalyticsHandlers) getSubscriberInsights(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.GetSubscriberInsights(r.Context(), creatorID)
	if err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// trackSession handles POST /api/v1/analytics/sessions
// The session is stored synchronously; the user's analytics refresh runs in the background.
func (h *AnalyticsHandlers) trackSession(w http.ResponseWriter, r *http.Request) {
	var req TrackSessionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	record := req.toRecord()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.IPAddress = analytics.GetClientIP(r)
	record.UserAgent = analytics.GetUserAgent(r)

	if err := h.service.TrackUserSession(r.Context(), record); err != nil {
		httputil.WriteAnalyticsError(w, err)
		return
	}
	httputil.WriteAccepted(w, TrackSessionResponse{
		SessionID: record.ID,
		UserID:    record.UserID,
		Status:    "accepted",
	})
}
