package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Metric names a benchmarked creator metric
type Metric string

const (
	MetricViews          Metric = "views"
	MetricSubscribers    Metric = "subscribers"
	MetricRevenue        Metric = "revenue"
	MetricEngagementRate Metric = "engagement_rate"
)

// defaultPercentile is reported when a benchmark has no thresholds for a metric
const defaultPercentile = 50

// PercentileBands are the only values PercentileOf returns
var PercentileBands = []int{25, 50, 75, 90, 95}

// Thresholds returns the band boundaries stored for metric, if any
func (t *PercentileTable) Thresholds(metric Metric) (PercentileThresholds, bool) {
	if t == nil {
		return PercentileThresholds{}, false
	}
	var th *PercentileThresholds
	switch metric {
	case MetricViews:
		th = t.Views
	case MetricSubscribers:
		th = t.Subscribers
	case MetricRevenue:
		th = t.Revenue
	case MetricEngagementRate:
		th = t.EngagementRate
	}
	if th == nil {
		return PercentileThresholds{}, false
	}
	return *th, true
}

// Median returns the benchmark median for metric
func (b *Benchmark) Median(metric Metric) float64 {
	switch metric {
	case MetricViews:
		return b.MedianViews
	case MetricSubscribers:
		return b.MedianSubscribers
	case MetricRevenue:
		return b.MedianRevenue
	case MetricEngagementRate:
		return b.MedianViewToSubscribeRate
	}
	return 0
}

// PercentileOf places value into one of five fixed bands relative to the
// benchmark thresholds for metric. Missing thresholds report the median band.
func PercentileOf(value float64, benchmark *Benchmark, metric Metric) int {
	if benchmark == nil {
		return defaultPercentile
	}
	th, ok := benchmark.Percentiles.Thresholds(metric)
	if !ok {
		return defaultPercentile
	}

	switch {
	case value <= th.P25:
		return 25
	case value <= th.P50:
		return 50
	case value <= th.P75:
		return 75
	case value <= th.P90:
		return 90
	default:
		return 95
	}
}

// MetricComparison reports a creator value against its peer group
type MetricComparison struct {
	Value           float64 `json:"value"`
	BenchmarkMedian float64 `json:"benchmark_median"`
	Percentile      int     `json:"percentile"`
}

// MetricComparisons groups the four benchmarked metrics
type MetricComparisons struct {
	Views          MetricComparison `json:"views"`
	Subscribers    MetricComparison `json:"subscribers"`
	Revenue        MetricComparison `json:"revenue"`
	EngagementRate MetricComparison `json:"engagement_rate"`
}

// MetricValue extracts the benchmarked value of metric from revenue metrics
func MetricValue(metrics RevenueMetrics, metric Metric) float64 {
	switch metric {
	case MetricViews:
		return float64(metrics.TotalViews)
	case MetricSubscribers:
		return float64(metrics.SubscriberCount)
	case MetricRevenue:
		return metrics.MonthlyRecurringRevenue
	case MetricEngagementRate:
		return metrics.EngagementRate
	}
	return 0
}

// CompareToBenchmark runs PercentileOf for every benchmarked metric
func CompareToBenchmark(metrics RevenueMetrics, benchmark *Benchmark) MetricComparisons {
	compare := func(metric Metric) MetricComparison {
		value := MetricValue(metrics, metric)
		c := MetricComparison{
			Value:      value,
			Percentile: PercentileOf(value, benchmark, metric),
		}
		if benchmark != nil {
			c.BenchmarkMedian = benchmark.Median(metric)
		}
		return c
	}

	return MetricComparisons{
		Views:          compare(MetricViews),
		Subscribers:    compare(MetricSubscribers),
		Revenue:        compare(MetricRevenue),
		EngagementRate: compare(MetricEngagementRate),
	}
}

// BenchmarkGenerator builds peer-group benchmarks from creator snapshots
type BenchmarkGenerator struct {
	snapshots SnapshotStore
	store     BenchmarkStore
	now       func() time.Time
}

// NewBenchmarkGenerator creates a new benchmark generator
func NewBenchmarkGenerator(snapshots SnapshotStore, store BenchmarkStore) *BenchmarkGenerator {
	return &BenchmarkGenerator{
		snapshots: snapshots,
		store:     store,
		now:       time.Now,
	}
}

// Generate computes and saves the benchmark for one category and tier
func (g *BenchmarkGenerator) Generate(ctx context.Context, category string, tier Tier) (*Benchmark, error) {
	snapshots, err := g.snapshots.ListCreatorSnapshots(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator snapshots for %s: %w", category, err)
	}

	peers := make([]RevenueMetrics, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if snapshot.Tier == tier {
			peers = append(peers, snapshot.Revenue)
		}
	}

	benchmark := BuildBenchmark(category, tier, peers, g.now())
	if err := g.store.SaveBenchmark(ctx, benchmark); err != nil {
		return nil, fmt.Errorf("failed to save benchmark %s/%s: %w", category, tier, err)
	}
	return benchmark, nil
}

// GenerateAll regenerates benchmarks for every tier of each category
func (g *BenchmarkGenerator) GenerateAll(ctx context.Context, categories []string) error {
	for _, category := range categories {
		for _, tier := range AllTiers {
			if _, err := g.Generate(ctx, category, tier); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildBenchmark summarizes a peer group. An empty group yields a benchmark
// with no percentile table.
func BuildBenchmark(category string, tier Tier, peers []RevenueMetrics, now time.Time) *Benchmark {
	date := now.UTC().Truncate(24 * time.Hour)
	benchmark := &Benchmark{
		ID:            uuid.NewString(),
		Category:      category,
		Tier:          tier,
		SampleSize:    len(peers),
		BenchmarkDate: date,
	}
	if len(peers) == 0 {
		return benchmark
	}

	column := func(metric Metric) []float64 {
		values := make([]float64, len(peers))
		for i, peer := range peers {
			values[i] = MetricValue(peer, metric)
		}
		sort.Float64s(values)
		return values
	}
	thresholds := func(sorted []float64) *PercentileThresholds {
		return &PercentileThresholds{
			P25: percentileCont(sorted, 0.25),
			P50: percentileCont(sorted, 0.50),
			P75: percentileCont(sorted, 0.75),
			P90: percentileCont(sorted, 0.90),
		}
	}

	views := column(MetricViews)
	subscribers := column(MetricSubscribers)
	revenue := column(MetricRevenue)
	engagement := column(MetricEngagementRate)

	benchmark.MedianViews = percentileCont(views, 0.5)
	benchmark.MedianSubscribers = percentileCont(subscribers, 0.5)
	benchmark.MedianRevenue = percentileCont(revenue, 0.5)
	benchmark.MedianViewToSubscribeRate = percentileCont(engagement, 0.5)
	benchmark.Percentiles = &PercentileTable{
		Views:          thresholds(views),
		Subscribers:    thresholds(subscribers),
		Revenue:        thresholds(revenue),
		EngagementRate: thresholds(engagement),
	}
	return benchmark
}

// percentileCont interpolates linearly between closest ranks, matching
// PostgreSQL PERCENTILE_CONT. sorted must be ascending and non-empty.
func percentileCont(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
