package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/config"
	"github.com/platinummonkey/persona-insights/pkg/observability"
	"github.com/platinummonkey/persona-insights/pkg/storage/postgres"
)

func setupJobs(t *testing.T) (*jobs, *postgres.SQLStore, *postgres.ConnectionManager, *observability.Metrics, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &logs)

	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		Dialect:    postgres.DialectSQLite,
		PrimaryURL: ":memory:",
		MaxConns:   1,
		MinConns:   1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { conns.Close() })
	require.NoError(t, postgres.Migrate(context.Background(), conns.Primary(), conns.Dialect()))

	store := postgres.NewSQLStore(conns)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	cfg := config.Default().Analytics
	cfg.BenchmarkCategories = []string{"art"}

	return newJobs(store, cfg, metrics, logger), store, conns, metrics, &logs
}

func TestRunAll_FirstOfMonth(t *testing.T) {
	j, store, conns, metrics, logs := setupJobs(t)
	ctx := context.Background()

	_, err := conns.Primary().Exec(`INSERT INTO creator_profiles (creator_id, display_name, category) VALUES ($1, $2, $3)`, "c1", "Ada", "art")
	require.NoError(t, err)
	for i, day := range []int{3, 17} {
		_, err := conns.Primary().Exec(`INSERT INTO payments (id, payer_id, creator_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
			[]string{"p1", "p2"}[i], []string{"u1", "u2"}[i], "c1", "50.00", time.Date(2024, 2, day, 12, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}
	require.NoError(t, store.AppendRevenueDataPoint(ctx, analytics.RevenueDataPoint{
		CreatorID:       "c1",
		PeriodStart:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalRevenue:    500,
		SubscriberCount: 5,
	}))

	require.NoError(t, j.runAll(ctx, time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)))

	snapshot, err := store.GetCreatorSnapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "art", snapshot.Category)
	assert.Equal(t, analytics.TierNew, snapshot.Tier)
	assert.InDelta(t, 100.0, snapshot.Revenue.TotalRevenue, 1e-9)

	history, err := store.ListRevenueHistory(ctx, "c1", 12)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), history[0].PeriodStart)
	assert.InDelta(t, 100.0, history[0].TotalRevenue, 1e-9)

	benchmark, err := store.GetLatestBenchmark(ctx, "art", analytics.TierNew)
	require.NoError(t, err)
	assert.Equal(t, 1, benchmark.SampleSize)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues(jobAggregation, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues(jobBenchmarks, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues(jobAlerts, "success")))
	assert.Equal(t, float64(len(analytics.AllTiers)), testutil.ToFloat64(metrics.BenchmarkGenerationsTotal.WithLabelValues(string(analytics.TierNew)))+
		testutil.ToFloat64(metrics.BenchmarkGenerationsTotal.WithLabelValues(string(analytics.TierEmerging)))+
		testutil.ToFloat64(metrics.BenchmarkGenerationsTotal.WithLabelValues(string(analytics.TierEstablished)))+
		testutil.ToFloat64(metrics.BenchmarkGenerationsTotal.WithLabelValues(string(analytics.TierTopPerformer))))

	// 500 -> 100 is an 80% drop
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RevenueAlertsTotal.WithLabelValues(analytics.SeverityCritical)))
	assert.Contains(t, logs.String(), "Revenue dropped sharply")
}

func TestAggregate_MidMonthDoesNotClosePeriod(t *testing.T) {
	j, store, conns, _, _ := setupJobs(t)
	ctx := context.Background()

	_, err := conns.Primary().Exec(`INSERT INTO creator_profiles (creator_id, category) VALUES ($1, $2)`, "c1", "art")
	require.NoError(t, err)

	require.NoError(t, j.aggregate(ctx, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))

	history, err := store.ListRevenueHistory(ctx, "c1", 12)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = store.GetCreatorSnapshot(ctx, "c1")
	assert.NoError(t, err)
}

func TestAlerts_NoHistory(t *testing.T) {
	j, _, _, metrics, _ := setupJobs(t)

	alerts, err := j.alerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues(jobAlerts, "success")))
}

func TestAggregate_RecordsFailure(t *testing.T) {
	j, _, conns, metrics, _ := setupJobs(t)
	require.NoError(t, conns.Close())

	err := j.aggregate(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creator aggregation failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationRunsTotal.WithLabelValues(jobAggregation, "error")))
}
