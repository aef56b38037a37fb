package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/persona-insights/pkg/async"
	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const (
	recentSessionLimit     = 10
	creatorHistoryDisplay  = 12
	topSubscriberLimit     = 10
	newSubscriberWindow    = 30 * 24 * time.Hour
	unknownDemographicsKey = "unknown"
)

// Config tunes the query layer
type Config struct {
	// HistoryPeriods is how many revenue periods feed a forecast
	HistoryPeriods        int
	DefaultForecastMonths int
	MaxForecastMonths     int
	// RefreshTimeout bounds the background refresh after a tracked session
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default query configuration
func DefaultConfig() Config {
	return Config{
		HistoryPeriods:        24,
		DefaultForecastMonths: 6,
		MaxForecastMonths:     24,
		RefreshTimeout:        30 * time.Second,
	}
}

// Dispatcher runs fn out of band of the calling request
type Dispatcher func(ctx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error)

// Service provides analytics queries over the store
type Service struct {
	store      Store
	benchmarks BenchmarkStore
	aggregator *Aggregator
	generator  *BenchmarkGenerator
	logger     *observability.Logger
	metrics    *observability.Metrics
	config     Config
	dispatch   Dispatcher
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithConfig overrides the default query configuration
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithBenchmarkStore routes benchmark reads and writes through bs, e.g. a cache
func WithBenchmarkStore(bs BenchmarkStore) Option {
	return func(s *Service) { s.benchmarks = bs }
}

// WithDispatcher replaces the background task runner
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatch = d }
}

// NewService creates a new analytics service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		benchmarks: store,
		config:     DefaultConfig(),
		dispatch:   async.SafeGo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s.aggregator = NewAggregator(store, s.logger)
	s.generator = NewBenchmarkGenerator(store, s.benchmarks)
	return s
}

// UserAnalyticsReport is the user-facing engagement report
type UserAnalyticsReport struct {
	UserID         string            `json:"user_id"`
	Engagement     EngagementMetrics `json:"engagement"`
	Demographics   Demographics      `json:"demographics"`
	Behavior       Behavior          `json:"behavior"`
	RecentSessions []SessionRecord   `json:"recent_sessions"`
	LastCalculated time.Time         `json:"last_calculated"`
}

// GetUserAnalytics returns the user's snapshot, creating it on first use
func (s *Service) GetUserAnalytics(ctx context.Context, userID string) (*UserAnalyticsReport, error) {
	return guard(ctx, s, "get_user_analytics", userID, func(ctx context.Context) (*UserAnalyticsReport, error) {
		if userID == "" {
			return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
		}

		var (
			snapshot *UserSnapshot
			sessions []SessionRecord
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			snapshot, err = s.ensureUserSnapshot(gctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			sessions, err = s.store.ListSessions(gctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		sort.SliceStable(sessions, func(i, j int) bool {
			return sessions[i].StartedAt.After(sessions[j].StartedAt)
		})
		if len(sessions) > recentSessionLimit {
			sessions = sessions[:recentSessionLimit]
		}

		return &UserAnalyticsReport{
			UserID:         snapshot.UserID,
			Engagement:     snapshot.Engagement,
			Demographics:   snapshot.Demographics,
			Behavior:       snapshot.Behavior,
			RecentSessions: sessions,
			LastCalculated: snapshot.LastCalculated,
		}, nil
	})
}

// CreatorAnalyticsReport is the creator-facing revenue report
type CreatorAnalyticsReport struct {
	CreatorID      string             `json:"creator_id"`
	Category       string             `json:"category"`
	Tier           Tier               `json:"tier"`
	Revenue        RevenueMetrics     `json:"revenue"`
	RevenueHistory []RevenueDataPoint `json:"revenue_history"`
	Trends         TrendSummary       `json:"trends"`
	LastCalculated time.Time          `json:"last_calculated"`
}

// GetCreatorAnalytics returns the creator's snapshot and recent revenue history
func (s *Service) GetCreatorAnalytics(ctx context.Context, creatorID string) (*CreatorAnalyticsReport, error) {
	return guard(ctx, s, "get_creator_analytics", creatorID, func(ctx context.Context) (*CreatorAnalyticsReport, error) {
		if creatorID == "" {
			return nil, fmt.Errorf("%w: creator id is required", ErrInvalidArgument)
		}

		var (
			snapshot *CreatorSnapshot
			history  []RevenueDataPoint
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			snapshot, err = s.ensureCreatorSnapshot(gctx, creatorID)
			return err
		})
		g.Go(func() error {
			var err error
			history, err = s.store.ListRevenueHistory(gctx, creatorID, s.config.HistoryPeriods)
			if err != nil {
				return fmt.Errorf("failed to list revenue history: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		trends := SummarizeTrend(history)
		if len(history) > creatorHistoryDisplay {
			history = history[:creatorHistoryDisplay]
		}

		return &CreatorAnalyticsReport{
			CreatorID:      snapshot.CreatorID,
			Category:       snapshot.Category,
			Tier:           snapshot.Tier,
			Revenue:        snapshot.Revenue,
			RevenueHistory: history,
			Trends:         trends,
			LastCalculated: snapshot.LastCalculated,
		}, nil
	})
}

// MethodForecasts holds the individual series the ensemble combines
type MethodForecasts struct {
	Linear   []ForecastPoint `json:"linear"`
	Seasonal []ForecastPoint `json:"seasonal"`
	Trend    []ForecastPoint `json:"trend"`
}

// RevenueForecasting is the forecast report for a creator
type RevenueForecasting struct {
	CreatorID     string          `json:"creator_id"`
	Months        int             `json:"months"`
	CurrentMRR    float64         `json:"current_mrr"`
	HistoryLength int             `json:"history_length"`
	Forecasts     []ForecastPoint `json:"forecasts"`
	Methods       MethodForecasts `json:"methods"`
	Trends        TrendSummary    `json:"trends"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// GenerateRevenueForecasting projects the creator's revenue for months
// periods. Zero months selects the configured default.
func (s *Service) GenerateRevenueForecasting(ctx context.Context, creatorID string, months int) (*RevenueForecasting, error) {
	return guard(ctx, s, "generate_revenue_forecasting", creatorID, func(ctx context.Context) (*RevenueForecasting, error) {
		if creatorID == "" {
			return nil, fmt.Errorf("%w: creator id is required", ErrInvalidArgument)
		}
		if months < 0 {
			return nil, fmt.Errorf("%w: months must not be negative", ErrInvalidArgument)
		}
		if months == 0 {
			months = s.config.DefaultForecastMonths
		}
		if s.config.MaxForecastMonths > 0 && months > s.config.MaxForecastMonths {
			months = s.config.MaxForecastMonths
		}

		var (
			snapshot *CreatorSnapshot
			history  []RevenueDataPoint
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			snapshot, err = s.ensureCreatorSnapshot(gctx, creatorID)
			return err
		})
		g.Go(func() error {
			var err error
			history, err = s.store.ListRevenueHistory(gctx, creatorID, s.config.HistoryPeriods)
			if err != nil {
				return fmt.Errorf("failed to list revenue history: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		forecasts := Forecast(history, months)
		if len(forecasts) > 0 {
			s.metrics.RecordForecast(string(forecasts[0].Method), forecasts[0].Confidence)
		}

		return &RevenueForecasting{
			CreatorID:     creatorID,
			Months:        months,
			CurrentMRR:    snapshot.Revenue.MonthlyRecurringRevenue,
			HistoryLength: len(history),
			Forecasts:     forecasts,
			Methods: MethodForecasts{
				Linear:   ForecastWith(MethodLinear, history, months),
				Seasonal: ForecastWith(MethodSeasonal, history, months),
				Trend:    ForecastWith(MethodTrend, history, months),
			},
			Trends:      SummarizeTrend(history),
			GeneratedAt: s.now().UTC(),
		}, nil
	})
}

// PerformanceBenchmarkReport compares a creator against category/tier peers
type PerformanceBenchmarkReport struct {
	CreatorID       string            `json:"creator_id"`
	Category        string            `json:"category"`
	Tier            Tier              `json:"tier"`
	Metrics         MetricComparisons `json:"metrics"`
	Recommendations []string          `json:"recommendations"`
	SampleSize      int               `json:"sample_size"`
	BenchmarkDate   time.Time         `json:"benchmark_date"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// GetPerformanceBenchmarks classifies the creator, benchmarks them against
// their peer group and derives recommendations
func (s *Service) GetPerformanceBenchmarks(ctx context.Context, creatorID string) (*PerformanceBenchmarkReport, error) {
	return guard(ctx, s, "get_performance_benchmarks", creatorID, func(ctx context.Context) (*PerformanceBenchmarkReport, error) {
		if creatorID == "" {
			return nil, fmt.Errorf("%w: creator id is required", ErrInvalidArgument)
		}

		var (
			snapshot *CreatorSnapshot
			profile  *CreatorProfile
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			snapshot, err = s.ensureCreatorSnapshot(gctx, creatorID)
			return err
		})
		g.Go(func() error {
			var err error
			profile, err = s.store.GetCreatorProfile(gctx, creatorID)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrCreatorProfileMissing, creatorID)
			}
			if err != nil {
				return fmt.Errorf("failed to get creator profile: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		category := profile.Category
		if category == "" {
			category = snapshot.Category
		}
		tier := ClassifyTier(snapshot.Revenue.SubscriberCount, snapshot.Revenue.MonthlyRecurringRevenue)

		benchmark, err := s.ensureBenchmark(ctx, category, tier)
		if err != nil {
			return nil, err
		}

		comparisons := CompareToBenchmark(snapshot.Revenue, benchmark)
		return &PerformanceBenchmarkReport{
			CreatorID:       creatorID,
			Category:        category,
			Tier:            tier,
			Metrics:         comparisons,
			Recommendations: Recommend(comparisons, tier),
			SampleSize:      benchmark.SampleSize,
			BenchmarkDate:   benchmark.BenchmarkDate,
			GeneratedAt:     s.now().UTC(),
		}, nil
	})
}

// SubscriberValue is one subscriber's lifetime contribution
type SubscriberValue struct {
	UserID         string    `json:"user_id"`
	LifetimeValue  float64   `json:"lifetime_value"`
	Payments       int       `json:"payments"`
	FirstPaymentAt time.Time `json:"first_payment_at"`
}

// DemographicBreakdown counts subscribers per demographic value
type DemographicBreakdown struct {
	AgeRanges map[string]int `json:"age_ranges"`
	Genders   map[string]int `json:"genders"`
	Locations map[string]int `json:"locations"`
}

// SubscriberInsightsReport summarizes who pays a creator
type SubscriberInsightsReport struct {
	CreatorID                   string               `json:"creator_id"`
	TotalSubscribers            int                  `json:"total_subscribers"`
	NewSubscribers30d           int                  `json:"new_subscribers_30d"`
	AverageRevenuePerSubscriber float64              `json:"average_revenue_per_subscriber"`
	TopSubscribers              []SubscriberValue    `json:"top_subscribers"`
	Demographics                DemographicBreakdown `json:"demographics"`
	GeneratedAt                 time.Time            `json:"generated_at"`
}

// GetSubscriberInsights groups the creator's payments by payer and joins
// payer demographics
func (s *Service) GetSubscriberInsights(ctx context.Context, creatorID string) (*SubscriberInsightsReport, error) {
	return guard(ctx, s, "get_subscriber_insights", creatorID, func(ctx context.Context) (*SubscriberInsightsReport, error) {
		if creatorID == "" {
			return nil, fmt.Errorf("%w: creator id is required", ErrInvalidArgument)
		}

		payments, err := s.store.ListPaymentsByCreator(ctx, creatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to list payments: %w", err)
		}

		byPayer := make(map[string]*SubscriberValue)
		var totalRevenue float64
		for _, p := range payments {
			amount := ParseAmount(p.Amount)
			totalRevenue += amount

			sv, ok := byPayer[p.PayerID]
			if !ok {
				sv = &SubscriberValue{UserID: p.PayerID, FirstPaymentAt: p.CreatedAt}
				byPayer[p.PayerID] = sv
			}
			sv.LifetimeValue += amount
			sv.Payments++
			if p.CreatedAt.Before(sv.FirstPaymentAt) {
				sv.FirstPaymentAt = p.CreatedAt
			}
		}

		now := s.now().UTC()
		payerIDs := make([]string, 0, len(byPayer))
		subscribers := make([]SubscriberValue, 0, len(byPayer))
		newSubscribers := 0
		for id, sv := range byPayer {
			payerIDs = append(payerIDs, id)
			subscribers = append(subscribers, *sv)
			if now.Sub(sv.FirstPaymentAt) <= newSubscriberWindow {
				newSubscribers++
			}
		}
		sort.Strings(payerIDs)
		sort.Slice(subscribers, func(i, j int) bool {
			if subscribers[i].LifetimeValue != subscribers[j].LifetimeValue {
				return subscribers[i].LifetimeValue > subscribers[j].LifetimeValue
			}
			return subscribers[i].UserID < subscribers[j].UserID
		})
		if len(subscribers) > topSubscriberLimit {
			subscribers = subscribers[:topSubscriberLimit]
		}

		var snapshots []*UserSnapshot
		if len(payerIDs) > 0 {
			snapshots, err = s.store.ListUserSnapshots(ctx, payerIDs)
			if err != nil {
				return nil, fmt.Errorf("failed to list subscriber snapshots: %w", err)
			}
		}

		report := &SubscriberInsightsReport{
			CreatorID:         creatorID,
			TotalSubscribers:  len(byPayer),
			NewSubscribers30d: newSubscribers,
			TopSubscribers:    subscribers,
			Demographics:      breakdownDemographics(payerIDs, snapshots),
			GeneratedAt:       now,
		}
		if len(byPayer) > 0 {
			report.AverageRevenuePerSubscriber = totalRevenue / float64(len(byPayer))
		}
		return report, nil
	})
}

// TrackUserSession appends a session to the log and refreshes the user's
// analytics in the background
func (s *Service) TrackUserSession(ctx context.Context, session SessionRecord) error {
	_, err := guard(ctx, s, "track_user_session", session.UserID, func(ctx context.Context) (struct{}, error) {
		if session.UserID == "" {
			return struct{}{}, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
		}
		if session.DurationSeconds < 0 {
			return struct{}{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidArgument)
		}
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		if session.StartedAt.IsZero() {
			session.StartedAt = s.now().UTC()
		}

		if err := s.store.InsertSession(ctx, session); err != nil {
			return struct{}{}, fmt.Errorf("failed to insert session: %w", err)
		}

		userID := session.UserID
		s.dispatch(context.WithoutCancel(ctx), s.config.RefreshTimeout, "user analytics refresh", func(ctx context.Context) error {
			_, err := s.UpdateUserAnalytics(ctx, userID)
			return err
		})
		return struct{}{}, nil
	})
	return err
}

// UpdateUserAnalytics recomputes the user's snapshot
func (s *Service) UpdateUserAnalytics(ctx context.Context, userID string) (*UserSnapshot, error) {
	return guard(ctx, s, "update_user_analytics", userID, func(ctx context.Context) (*UserSnapshot, error) {
		if userID == "" {
			return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
		}
		return s.aggregator.UpdateUserAnalytics(ctx, userID)
	})
}

// UpdateCreatorAnalytics recomputes the creator's snapshot
func (s *Service) UpdateCreatorAnalytics(ctx context.Context, creatorID string) (*CreatorSnapshot, error) {
	return guard(ctx, s, "update_creator_analytics", creatorID, func(ctx context.Context) (*CreatorSnapshot, error) {
		if creatorID == "" {
			return nil, fmt.Errorf("%w: creator id is required", ErrInvalidArgument)
		}
		return s.aggregator.UpdateCreatorAnalytics(ctx, creatorID)
	})
}

// ensureUserSnapshot reads the snapshot, computing and upserting it when
// missing. The follow-up read happens once.
func (s *Service) ensureUserSnapshot(ctx context.Context, userID string) (*UserSnapshot, error) {
	snapshot, err := s.store.GetUserSnapshot(ctx, userID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user snapshot: %w", err)
	}

	if _, err := s.aggregator.UpdateUserAnalytics(ctx, userID); err != nil {
		return nil, err
	}

	snapshot, err = s.store.GetUserSnapshot(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrSnapshotUnavailable, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user snapshot: %w", err)
	}
	return snapshot, nil
}

// ensureCreatorSnapshot is ensureUserSnapshot for creators
func (s *Service) ensureCreatorSnapshot(ctx context.Context, creatorID string) (*CreatorSnapshot, error) {
	snapshot, err := s.store.GetCreatorSnapshot(ctx, creatorID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get creator snapshot: %w", err)
	}

	if _, err := s.aggregator.UpdateCreatorAnalytics(ctx, creatorID); err != nil {
		return nil, err
	}

	snapshot, err = s.store.GetCreatorSnapshot(ctx, creatorID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: creator %s", ErrSnapshotUnavailable, creatorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creator snapshot: %w", err)
	}
	return snapshot, nil
}

// ensureBenchmark returns the latest benchmark for the pair, generating one
// when none exists
func (s *Service) ensureBenchmark(ctx context.Context, category string, tier Tier) (*Benchmark, error) {
	benchmark, err := s.benchmarks.GetLatestBenchmark(ctx, category, tier)
	if err == nil {
		return benchmark, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get benchmark: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"category": category,
		"tier":     tier,
	}).Info("No benchmark found, generating")

	if _, err := s.generator.Generate(ctx, category, tier); err != nil {
		return nil, err
	}
	s.metrics.RecordBenchmarkGeneration(string(tier))

	benchmark, err = s.benchmarks.GetLatestBenchmark(ctx, category, tier)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: benchmark %s/%s", ErrSnapshotUnavailable, category, tier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get benchmark: %w", err)
	}
	return benchmark, nil
}

func breakdownDemographics(payerIDs []string, snapshots []*UserSnapshot) DemographicBreakdown {
	breakdown := DemographicBreakdown{
		AgeRanges: make(map[string]int),
		Genders:   make(map[string]int),
		Locations: make(map[string]int),
	}

	byUser := make(map[string]Demographics, len(snapshots))
	for _, snapshot := range snapshots {
		byUser[snapshot.UserID] = snapshot.Demographics
	}

	orUnknown := func(v string) string {
		if v == "" {
			return unknownDemographicsKey
		}
		return v
	}
	for _, id := range payerIDs {
		d := byUser[id]
		breakdown.AgeRanges[orUnknown(d.AgeRange)]++
		breakdown.Genders[orUnknown(d.Gender)]++
		breakdown.Locations[orUnknown(d.Location)]++
	}
	return breakdown
}
