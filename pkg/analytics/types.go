package analytics

import (
	"time"
)

// Tier is the ordinal class a creator is benchmarked within
type Tier string

const (
	TierNew          Tier = "new"
	TierEmerging     Tier = "emerging"
	TierEstablished  Tier = "established"
	TierTopPerformer Tier = "top_performer"
)

// AllTiers lists tiers in ascending order
var AllTiers = []Tier{TierNew, TierEmerging, TierEstablished, TierTopPerformer}

// Ordinal returns the position of the tier, or -1 for an unknown tier
func (t Tier) Ordinal() int {
	for i, tier := range AllTiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the four known tiers
func (t Tier) Valid() bool {
	return t.Ordinal() >= 0
}

// Demographics holds free-form, unvalidated profile attributes
type Demographics struct {
	AgeRange string `json:"age_range,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
}

// Behavior holds behavioral signals derived from sessions and likes
type Behavior struct {
	PreferredCategories []string `json:"preferred_categories"`
	MostUsedFeatures    []string `json:"most_used_features"`
	VisitStreak         int      `json:"visit_streak"`
}

// EngagementMetrics is the per-user engagement rollup
type EngagementMetrics struct {
	TotalSessions           int64   `json:"total_sessions"`
	AvgSessionDuration      float64 `json:"avg_session_duration_seconds"`
	TotalPersonasViewed     int64   `json:"total_personas_viewed"`
	TotalPersonasInteracted int64   `json:"total_personas_interacted"`
	ConversionRate          float64 `json:"conversion_rate"`
	TotalSpent              float64 `json:"total_spent"`
}

// UserMetrics is the full output of a user aggregation pass
type UserMetrics struct {
	Engagement EngagementMetrics
	Behavior   Behavior
}

// UserSnapshot is the current analytics row for a user
type UserSnapshot struct {
	UserID         string            `json:"user_id"`
	Engagement     EngagementMetrics `json:"engagement"`
	Demographics   Demographics      `json:"demographics"`
	Behavior       Behavior          `json:"behavior"`
	LastCalculated time.Time         `json:"last_calculated"`
}

// RevenueMetrics is the per-creator revenue and audience rollup
type RevenueMetrics struct {
	TotalRevenue            float64 `json:"total_revenue"`
	MonthlyRecurringRevenue float64 `json:"monthly_recurring_revenue"`
	SubscriberCount         int64   `json:"subscriber_count"`
	AverageRating           float64 `json:"average_rating"`
	ReviewCount             int64   `json:"review_count"`
	TotalViews              int64   `json:"total_views"`
	TotalLikes              int64   `json:"total_likes"`
	EngagementRate          float64 `json:"engagement_rate"`
}

// CreatorSnapshot is the current analytics row for a creator
type CreatorSnapshot struct {
	CreatorID      string         `json:"creator_id"`
	Category       string         `json:"category"`
	Revenue        RevenueMetrics `json:"revenue"`
	Tier           Tier           `json:"tier"`
	LastCalculated time.Time      `json:"last_calculated"`
}

// RevenueDataPoint is one closed period of creator revenue
type RevenueDataPoint struct {
	CreatorID       string    `json:"creator_id,omitempty"`
	PeriodStart     time.Time `json:"period_start"`
	TotalRevenue    float64   `json:"total_revenue"`
	SubscriberCount int64     `json:"subscriber_count"`
}

// PercentileThresholds are the band boundaries for one metric
type PercentileThresholds struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// PercentileTable holds thresholds per benchmarked metric. A nil entry means
// the benchmark has no data for that metric.
type PercentileTable struct {
	Views          *PercentileThresholds `json:"views,omitempty"`
	Subscribers    *PercentileThresholds `json:"subscribers,omitempty"`
	Revenue        *PercentileThresholds `json:"revenue,omitempty"`
	EngagementRate *PercentileThresholds `json:"engagement_rate,omitempty"`
}

// Benchmark is a peer-group summary for one category and tier
type Benchmark struct {
	ID                        string           `json:"id"`
	Category                  string           `json:"category"`
	Tier                      Tier             `json:"tier"`
	MedianViews               float64          `json:"median_views"`
	MedianSubscribers         float64          `json:"median_subscribers"`
	MedianRevenue             float64          `json:"median_revenue"`
	MedianViewToSubscribeRate float64          `json:"median_view_to_subscribe_rate"`
	Percentiles               *PercentileTable `json:"percentiles,omitempty"`
	SampleSize                int              `json:"sample_size"`
	BenchmarkDate             time.Time        `json:"benchmark_date"`
}

// ForecastMethod tags how a forecast point was produced
type ForecastMethod string

const (
	MethodLinear           ForecastMethod = "linear"
	MethodSeasonal         ForecastMethod = "seasonal"
	MethodTrend            ForecastMethod = "trend"
	MethodEnsemble         ForecastMethod = "ensemble"
	MethodInsufficientData ForecastMethod = "insufficient_data"
)

// ForecastPoint is one projected period. Never persisted.
type ForecastPoint struct {
	Period            string         `json:"period"`
	ForecastedRevenue float64        `json:"forecasted_revenue"`
	Confidence        float64        `json:"confidence"`
	Method            ForecastMethod `json:"method"`
}

// SessionRecord is one user session from the session log
type SessionRecord struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	StartedAt          time.Time `json:"started_at"`
	DurationSeconds    float64   `json:"duration_seconds"`
	PagesVisited       []string  `json:"pages_visited,omitempty"`
	PersonasViewed     []string  `json:"personas_viewed,omitempty"`
	PersonasInteracted []string  `json:"personas_interacted,omitempty"`
	Conversions        int       `json:"conversions"`
	DeviceType         string    `json:"device_type,omitempty"`
	IPAddress          string    `json:"-"`
	UserAgent          string    `json:"-"`
}

// PaymentRecord is a payment row from the payment ledger. Amount is kept as
// stored; it is parsed leniently during aggregation.
type PaymentRecord struct {
	ID        string    `json:"id"`
	PayerID   string    `json:"payer_id"`
	CreatorID string    `json:"creator_id"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewRecord is a persona review left for a creator
type ReviewRecord struct {
	ID        string   `json:"id"`
	CreatorID string   `json:"creator_id"`
	UserID    string   `json:"user_id"`
	Rating    *float64 `json:"rating,omitempty"`
}

// InteractionKind classifies social-graph interactions
type InteractionKind string

const (
	InteractionView InteractionKind = "view"
	InteractionLike InteractionKind = "like"
)

// InteractionRecord is a view or like of a persona
type InteractionRecord struct {
	UserID          string          `json:"user_id"`
	CreatorID       string          `json:"creator_id"`
	PersonaID       string          `json:"persona_id"`
	PersonaCategory string          `json:"persona_category,omitempty"`
	Kind            InteractionKind `json:"kind"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CreatorProfile is the subset of the profile store the engine needs
type CreatorProfile struct {
	CreatorID   string `json:"creator_id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}
