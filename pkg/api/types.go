package api

import (
	"context"
	"time"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
)

// AnalyticsService is the part of analytics.Service the handlers call
type AnalyticsService interface {
	GetUserAnalytics(ctx context.Context, userID string) (*analytics.UserAnalyticsReport, error)
	GetCreatorAnalytics(ctx context.Context, creatorID string) (*analytics.CreatorAnalyticsReport, error)
	GenerateRevenueForecasting(ctx context.Context, creatorID string, months int) (*analytics.RevenueForecasting, error)
	GetPerformanceBenchmarks(ctx context.Context, creatorID string) (*analytics.PerformanceBenchmarkReport, error)
	GetSubscriberInsights(ctx context.Context, creatorID string) (*analytics.SubscriberInsightsReport, error)
	TrackUserSession(ctx context.Context, session analytics.SessionRecord) error
	UpdateUserAnalytics(ctx context.Context, userID string) (*analytics.UserSnapshot, error)
	UpdateCreatorAnalytics(ctx context.Context, creatorID string) (*analytics.CreatorSnapshot, error)
}

var _ AnalyticsService = (*analytics.Service)(nil)

// TrackSessionRequest is the body of POST /api/v1/analytics/sessions
type TrackSessionRequest struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	DurationSeconds    float64    `json:"duration_seconds"`
	PagesVisited       []string   `json:"pages_visited,omitempty"`
	PersonasViewed     []string   `json:"personas_viewed,omitempty"`
	PersonasInteracted []string   `json:"personas_interacted,omitempty"`
	Conversions        int        `json:"conversions"`
	DeviceType         string     `json:"device_type,omitempty"`
}

// TrackSessionResponse acknowledges an accepted session
type TrackSessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

func (req TrackSessionRequest) toRecord() analytics.SessionRecord {
	record := analytics.SessionRecord{
		ID:                 req.ID,
		UserID:             req.UserID,
		DurationSeconds:    req.DurationSeconds,
		PagesVisited:       req.PagesVisited,
		PersonasViewed:     req.PersonasViewed,
		PersonasInteracted: req.PersonasInteracted,
		Conversions:        req.Conversions,
		DeviceType:         req.DeviceType,
	}
	if req.StartedAt != nil {
		record.StartedAt = req.StartedAt.UTC()
	}
	return record
}
