package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const (
	// mrrDivisor spreads lifetime revenue over a fixed twelve months
	mrrDivisor = 12

	// DefaultCategory is used for creators without a profile row
	DefaultCategory = "general"

	topBehaviorKeys      = 3
	defaultRefreshWorker = 4
)

// Aggregator computes user and creator rollups from raw records
type Aggregator struct {
	store   Store
	logger  *observability.Logger
	workers int
	now     func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(store Store, logger *observability.Logger) *Aggregator {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Aggregator{
		store:   store,
		logger:  logger,
		workers: defaultRefreshWorker,
		now:     time.Now,
	}
}

// SetWorkers bounds the fan-out used by batch refreshes
func (a *Aggregator) SetWorkers(n int) {
	if n > 0 {
		a.workers = n
	}
}

// ComputeUserMetrics reads a user's sessions, payments and likes concurrently
// and derives engagement and behavior metrics
func (a *Aggregator) ComputeUserMetrics(ctx context.Context, userID string) (*UserMetrics, error) {
	var (
		sessions     []SessionRecord
		payments     []PaymentRecord
		interactions []InteractionRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = a.store.ListSessions(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payments, err = a.store.ListPaymentsByPayer(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		interactions, err = a.store.ListInteractionsByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list interactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := aggregateUserMetrics(sessions, payments, interactions)
	return &metrics, nil
}

// ComputeCreatorMetrics reads a creator's payments, reviews and persona
// interactions concurrently and derives revenue metrics
func (a *Aggregator) ComputeCreatorMetrics(ctx context.Context, creatorID string) (*RevenueMetrics, error) {
	var (
		payments     []PaymentRecord
		reviews      []ReviewRecord
		interactions []InteractionRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payments, err = a.store.ListPaymentsByCreator(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reviews, err = a.store.ListReviewsForCreator(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("failed to list reviews: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		interactions, err = a.store.ListInteractionsForCreator(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("failed to list interactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := aggregateCreatorMetrics(payments, reviews, interactions)
	return &metrics, nil
}

// UpdateUserAnalytics recomputes and upserts the user's snapshot
func (a *Aggregator) UpdateUserAnalytics(ctx context.Context, userID string) (*UserSnapshot, error) {
	metrics, err := a.ComputeUserMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &UserSnapshot{
		UserID:         userID,
		Engagement:     metrics.Engagement,
		Behavior:       metrics.Behavior,
		LastCalculated: a.now().UTC(),
	}
	if err := a.store.UpsertUserSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to upsert user snapshot: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"sessions": metrics.Engagement.TotalSessions,
	}).Debug("User analytics updated")
	return snapshot, nil
}

// UpdateCreatorAnalytics recomputes, classifies and upserts the creator's snapshot
func (a *Aggregator) UpdateCreatorAnalytics(ctx context.Context, creatorID string) (*CreatorSnapshot, error) {
	var (
		metrics *RevenueMetrics
		profile *CreatorProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metrics, err = a.ComputeCreatorMetrics(gctx, creatorID)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = a.store.GetCreatorProfile(gctx, creatorID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get creator profile: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	category := DefaultCategory
	if profile != nil && profile.Category != "" {
		category = profile.Category
	}

	snapshot := &CreatorSnapshot{
		CreatorID:      creatorID,
		Category:       category,
		Revenue:        *metrics,
		Tier:           ClassifyTier(metrics.SubscriberCount, metrics.MonthlyRecurringRevenue),
		LastCalculated: a.now().UTC(),
	}
	if err := a.store.UpsertCreatorSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to upsert creator snapshot: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"creator_id": creatorID,
		"tier":       snapshot.Tier,
	}).Debug("Creator analytics updated")
	return snapshot, nil
}

// CloseRevenuePeriod appends the revenue data point for the month starting
// at periodStart. A period that was already closed is left as written.
func (a *Aggregator) CloseRevenuePeriod(ctx context.Context, creatorID string, periodStart time.Time) (*RevenueDataPoint, error) {
	start := monthStart(periodStart)
	end := start.AddDate(0, 1, 0)

	payments, err := a.store.ListPaymentsByCreatorBetween(ctx, creatorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for period: %w", err)
	}

	point := RevenueDataPoint{
		CreatorID:       creatorID,
		PeriodStart:     start,
		SubscriberCount: int64(len(payments)),
	}
	for _, p := range payments {
		point.TotalRevenue += ParseAmount(p.Amount)
	}

	if err := a.store.AppendRevenueDataPoint(ctx, point); err != nil {
		return nil, fmt.Errorf("failed to append revenue data point: %w", err)
	}
	return &point, nil
}

// AggregateAll refreshes every creator snapshot and, on the first day of a
// month, closes the previous month's revenue period. A failing creator does
// not stop the batch; all failures are joined into the returned error.
func (a *Aggregator) AggregateAll(ctx context.Context, date time.Time) error {
	creatorIDs, err := a.store.ListCreatorIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list creators: %w", err)
	}

	closePeriod := date.Day() == 1
	previousMonth := monthStart(date).AddDate(0, -1, 0)

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(creatorID string, err error) {
		mu.Lock()
		failures = append(failures, fmt.Errorf("creator %s: %w", creatorID, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.workers)
	for _, creatorID := range creatorIDs {
		creatorID := creatorID
		g.Go(func() error {
			if _, err := a.UpdateCreatorAnalytics(ctx, creatorID); err != nil {
				fail(creatorID, err)
			}
			if closePeriod {
				if _, err := a.CloseRevenuePeriod(ctx, creatorID, previousMonth); err != nil {
					fail(creatorID, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	a.logger.WithFields(map[string]interface{}{
		"creators":     len(creatorIDs),
		"failed":       len(failures),
		"period_close": closePeriod,
	}).Info("Creator analytics aggregation complete")
	return errors.Join(failures...)
}

func aggregateUserMetrics(sessions []SessionRecord, payments []PaymentRecord, interactions []InteractionRecord) UserMetrics {
	var m UserMetrics

	var totalDuration float64
	var conversions int
	pages := make(map[string]int)
	for _, s := range sessions {
		totalDuration += s.DurationSeconds
		conversions += s.Conversions
		m.Engagement.TotalPersonasViewed += int64(len(s.PersonasViewed))
		m.Engagement.TotalPersonasInteracted += int64(len(s.PersonasInteracted))
		for _, page := range s.PagesVisited {
			pages[page]++
		}
	}

	m.Engagement.TotalSessions = int64(len(sessions))
	if len(sessions) > 0 {
		m.Engagement.AvgSessionDuration = totalDuration / float64(len(sessions))
		m.Engagement.ConversionRate = float64(conversions) / float64(len(sessions))
	}

	for _, p := range payments {
		m.Engagement.TotalSpent += ParseAmount(p.Amount)
	}

	categories := make(map[string]int)
	for _, i := range interactions {
		if i.Kind == InteractionLike && i.PersonaCategory != "" {
			categories[i.PersonaCategory]++
		}
	}

	m.Behavior = Behavior{
		PreferredCategories: topKeys(categories, topBehaviorKeys),
		MostUsedFeatures:    topKeys(pages, topBehaviorKeys),
		VisitStreak:         visitStreak(sessions),
	}
	return m
}

func aggregateCreatorMetrics(payments []PaymentRecord, reviews []ReviewRecord, interactions []InteractionRecord) RevenueMetrics {
	var m RevenueMetrics

	for _, p := range payments {
		m.TotalRevenue += ParseAmount(p.Amount)
	}
	m.MonthlyRecurringRevenue = m.TotalRevenue / mrrDivisor
	m.SubscriberCount = int64(len(payments))

	var ratingSum float64
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		ratingSum += *r.Rating
		m.ReviewCount++
	}
	if m.ReviewCount > 0 {
		m.AverageRating = ratingSum / float64(m.ReviewCount)
	}

	for _, i := range interactions {
		switch i.Kind {
		case InteractionView:
			m.TotalViews++
		case InteractionLike:
			m.TotalLikes++
		}
	}
	if m.TotalViews > 0 {
		m.EngagementRate = float64(m.SubscriberCount) / float64(m.TotalViews)
	}
	return m
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
