package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratingOf(v float64) *float64 { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAggregator_ComputeUserMetrics(t *testing.T) {
	store := newMemStore()
	day := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.sessions = []SessionRecord{
		{UserID: "u1", StartedAt: day, DurationSeconds: 120, PagesVisited: []string{"chat", "explore"}, PersonasViewed: []string{"p1", "p2"}, PersonasInteracted: []string{"p1"}, Conversions: 1},
		{UserID: "u1", StartedAt: day.AddDate(0, 0, -1), DurationSeconds: 60, PagesVisited: []string{"chat"}, PersonasViewed: []string{"p3"}},
		{UserID: "u1", StartedAt: day.AddDate(0, 0, -3), DurationSeconds: 30, PagesVisited: []string{"chat", "profile"}},
		{UserID: "other", StartedAt: day, DurationSeconds: 999},
	}
	store.payments = []PaymentRecord{
		{PayerID: "u1", CreatorID: "c1", Amount: "9.99"},
		{PayerID: "u1", CreatorID: "c2", Amount: "not-a-number"},
		{PayerID: "u1", CreatorID: "c2", Amount: ""},
	}
	store.interactions = []InteractionRecord{
		{UserID: "u1", Kind: InteractionLike, PersonaCategory: "fitness"},
		{UserID: "u1", Kind: InteractionLike, PersonaCategory: "fitness"},
		{UserID: "u1", Kind: InteractionLike, PersonaCategory: "cooking"},
		{UserID: "u1", Kind: InteractionView, PersonaCategory: "music"},
	}

	agg := NewAggregator(store, nil)
	metrics, err := agg.ComputeUserMetrics(context.Background(), "u1")
	require.NoError(t, err)

	e := metrics.Engagement
	assert.Equal(t, int64(3), e.TotalSessions)
	assert.InDelta(t, 70, e.AvgSessionDuration, epsilon)
	assert.Equal(t, int64(3), e.TotalPersonasViewed)
	assert.Equal(t, int64(1), e.TotalPersonasInteracted)
	assert.InDelta(t, 1.0/3.0, e.ConversionRate, epsilon)
	assert.InDelta(t, 9.99, e.TotalSpent, epsilon)

	b := metrics.Behavior
	assert.Equal(t, []string{"fitness", "cooking"}, b.PreferredCategories)
	assert.Equal(t, []string{"chat", "explore", "profile"}, b.MostUsedFeatures)
	assert.Equal(t, 2, b.VisitStreak)
}

func TestAggregator_ComputeUserMetrics_Empty(t *testing.T) {
	agg := NewAggregator(newMemStore(), nil)

	metrics, err := agg.ComputeUserMetrics(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, EngagementMetrics{}, metrics.Engagement)
	assert.Empty(t, metrics.Behavior.PreferredCategories)
	assert.Equal(t, 0, metrics.Behavior.VisitStreak)
}

func TestAggregator_ComputeCreatorMetrics(t *testing.T) {
	store := newMemStore()
	store.addPayments("c1", 3, "120", time.Now())
	store.payments = append(store.payments, PaymentRecord{PayerID: "x", CreatorID: "c1", Amount: "abc"})
	store.reviews = []ReviewRecord{
		{CreatorID: "c1", Rating: ratingOf(4)},
		{CreatorID: "c1", Rating: ratingOf(5)},
		{CreatorID: "c1", Rating: nil},
	}
	for i := 0; i < 8; i++ {
		store.interactions = append(store.interactions, InteractionRecord{CreatorID: "c1", Kind: InteractionView})
	}
	store.interactions = append(store.interactions, InteractionRecord{CreatorID: "c1", Kind: InteractionLike})

	metrics, err := NewAggregator(store, nil).ComputeCreatorMetrics(context.Background(), "c1")
	require.NoError(t, err)

	assert.InDelta(t, 360, metrics.TotalRevenue, epsilon)
	assert.InDelta(t, 30, metrics.MonthlyRecurringRevenue, epsilon)
	assert.Equal(t, int64(4), metrics.SubscriberCount)
	assert.InDelta(t, 4.5, metrics.AverageRating, epsilon)
	assert.Equal(t, int64(2), metrics.ReviewCount)
	assert.Equal(t, int64(8), metrics.TotalViews)
	assert.Equal(t, int64(1), metrics.TotalLikes)
	assert.InDelta(t, 0.5, metrics.EngagementRate, epsilon)
}

func TestAggregator_ComputeCreatorMetrics_ReadFailure(t *testing.T) {
	store := newMemStore()
	store.failWith["ListReviewsForCreator"] = errors.New("replica down")

	_, err := NewAggregator(store, nil).ComputeCreatorMetrics(context.Background(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list reviews")
}

func TestAggregator_UpdateCreatorAnalytics(t *testing.T) {
	store := newMemStore()
	store.addPayments("c1", 20, "100", time.Now())
	store.profiles["c1"] = &CreatorProfile{CreatorID: "c1", Category: "fitness"}

	agg := NewAggregator(store, nil)
	agg.now = fixedClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))

	snapshot, err := agg.UpdateCreatorAnalytics(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "fitness", snapshot.Category)
	assert.Equal(t, TierEmerging, snapshot.Tier)
	assert.InDelta(t, 2000.0/12, snapshot.Revenue.MonthlyRecurringRevenue, epsilon)

	stored, err := store.GetCreatorSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, *snapshot, *stored)

	again, err := agg.UpdateCreatorAnalytics(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.Revenue, again.Revenue)
}

func TestAggregator_UpdateCreatorAnalytics_DefaultCategory(t *testing.T) {
	store := newMemStore()

	snapshot, err := NewAggregator(store, nil).UpdateCreatorAnalytics(context.Background(), "c-new")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, snapshot.Category)
	assert.Equal(t, TierNew, snapshot.Tier)
}

func TestAggregator_UpdateUserAnalytics_NothingPersistedOnFailure(t *testing.T) {
	store := newMemStore()
	store.failWith["ListSessions"] = errors.New("timeout")

	_, err := NewAggregator(store, nil).UpdateUserAnalytics(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, 0, store.upserts)
}

func TestAggregator_UpdateUserAnalytics_KeepsDemographics(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &UserSnapshot{UserID: "u1", Demographics: Demographics{AgeRange: "25-34"}}
	store.sessions = []SessionRecord{{UserID: "u1", StartedAt: time.Now(), DurationSeconds: 10}}

	_, err := NewAggregator(store, nil).UpdateUserAnalytics(context.Background(), "u1")
	require.NoError(t, err)

	stored, err := store.GetUserSnapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "25-34", stored.Demographics.AgeRange)
	assert.Equal(t, int64(1), stored.Engagement.TotalSessions)
}

func TestAggregator_CloseRevenuePeriod(t *testing.T) {
	store := newMemStore()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.addPayments("c1", 2, "50", jan.Add(36*time.Hour))
	store.addPayments("c1", 1, "75", jan.AddDate(0, 1, 0))
	store.addPayments("c1", 1, "10", jan.Add(-time.Hour))

	agg := NewAggregator(store, nil)
	point, err := agg.CloseRevenuePeriod(context.Background(), "c1", jan.Add(15*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, jan, point.PeriodStart)
	assert.InDelta(t, 100, point.TotalRevenue, epsilon)
	assert.Equal(t, int64(2), point.SubscriberCount)

	store.addPayments("c1", 1, "500", jan.Add(48*time.Hour))
	_, err = agg.CloseRevenuePeriod(context.Background(), "c1", jan)
	require.NoError(t, err)

	history, err := store.ListRevenueHistory(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 100, history[0].TotalRevenue, epsilon)
}

func TestAggregator_AggregateAll(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"c1", "c2", "c3"} {
		store.profiles[id] = &CreatorProfile{CreatorID: id, Category: "fitness"}
	}
	feb := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	store.addPayments("c1", 2, "40", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))

	agg := NewAggregator(store, nil)
	agg.SetWorkers(2)

	t.Run("mid month refreshes only", func(t *testing.T) {
		require.NoError(t, agg.AggregateAll(context.Background(), feb.AddDate(0, 0, 9)))
		assert.Len(t, store.creators, 3)
		assert.Empty(t, store.revenue)
	})

	t.Run("first of month closes previous period", func(t *testing.T) {
		require.NoError(t, agg.AggregateAll(context.Background(), feb))
		history, err := store.ListRevenueHistory(context.Background(), "c1", 1)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), history[0].PeriodStart)
		assert.InDelta(t, 80, history[0].TotalRevenue, epsilon)
		assert.Len(t, store.revenue, 3)
	})

	t.Run("list failure", func(t *testing.T) {
		store.failWith["ListCreatorIDs"] = errors.New("boom")
		defer delete(store.failWith, "ListCreatorIDs")
		assert.Error(t, agg.AggregateAll(context.Background(), feb))
	})
}

func TestAggregator_AggregateAllContinuesPastFailingCreator(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"c1", "c2", "c3"} {
		store.profiles[id] = &CreatorProfile{CreatorID: id, Category: "fitness"}
		store.addPayments(id, 1, "30", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	}
	store.failProfile["c1"] = errors.New("profile service down")

	agg := NewAggregator(store, nil)
	agg.SetWorkers(1)

	err := agg.AggregateAll(context.Background(), time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorContains(t, err, "creator c1")
	assert.ErrorContains(t, err, "profile service down")
	assert.NotContains(t, err.Error(), "creator c2")

	for _, id := range []string{"c2", "c3"} {
		assert.Contains(t, store.creators, id)
		history, err := store.ListRevenueHistory(context.Background(), id, 1)
		require.NoError(t, err)
		require.Len(t, history, 1, id)
		assert.InDelta(t, 30, history[0].TotalRevenue, epsilon)
	}
	assert.NotContains(t, store.creators, "c1")

	history, err := store.ListRevenueHistory(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
