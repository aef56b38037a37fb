package main

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const (
	jobAggregation = "creator_aggregation"
	jobBenchmarks  = "benchmark_generation"
	jobAlerts      = "revenue_alerts"
)

// jobs holds the scheduled batch work
type jobs struct {
	aggregator *analytics.Aggregator
	generator  *analytics.BenchmarkGenerator
	alerter    *analytics.RevenueAlerter
	categories []string
	metrics    *observability.Metrics
	logger     *observability.Logger
}

// aggregate refreshes every creator snapshot for date and closes the previous
// month's revenue period on the first of the month
func (j *jobs) aggregate(ctx context.Context, date time.Time) error {
	start := time.Now()
	err := j.aggregator.AggregateAll(ctx, date)
	j.metrics.RecordAggregationRun(jobAggregation, err)
	if err != nil {
		return fmt.Errorf("creator aggregation failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":        date.Format("2006-01-02"),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Creator aggregation completed")
	return nil
}

// benchmarks regenerates the benchmark of every configured category and tier
func (j *jobs) benchmarks(ctx context.Context) error {
	var generated int
	for _, category := range j.categories {
		for _, tier := range analytics.AllTiers {
			benchmark, err := j.generator.Generate(ctx, category, tier)
			if err != nil {
				j.metrics.RecordAggregationRun(jobBenchmarks, err)
				return fmt.Errorf("benchmark generation failed: %w", err)
			}
			j.metrics.RecordBenchmarkGeneration(string(tier))
			generated++

			j.logger.WithFields(map[string]interface{}{
				"category":    category,
				"tier":        tier,
				"sample_size": benchmark.SampleSize,
			}).Debug("Benchmark generated")
		}
	}
	j.metrics.RecordAggregationRun(jobBenchmarks, nil)

	j.logger.WithField("benchmarks", generated).Info("Benchmark generation completed")
	return nil
}

// alerts logs creators whose latest closed revenue period dropped sharply
func (j *jobs) alerts(ctx context.Context) ([]analytics.RevenueAlert, error) {
	alerts, err := j.alerter.CheckAll(ctx)
	j.metrics.RecordAggregationRun(jobAlerts, err)
	if err != nil {
		return nil, fmt.Errorf("revenue alert check failed: %w", err)
	}

	for _, alert := range alerts {
		j.metrics.RecordRevenueAlert(alert.Severity)
		entry := j.logger.WithFields(map[string]interface{}{
			"creator_id":       alert.CreatorID,
			"severity":         alert.Severity,
			"growth":           alert.MonthOverMonthGrowth,
			"latest_revenue":   alert.LatestRevenue,
			"previous_revenue": alert.PreviousRevenue,
			"period_start":     alert.PeriodStart.Format("2006-01"),
		})
		if alert.Severity == analytics.SeverityCritical {
			entry.Error("Revenue dropped sharply")
		} else {
			entry.Warn("Revenue dropped")
		}
	}
	return alerts, nil
}

// runAll runs every job in dependency order: benchmarks read the snapshots
// aggregation writes, and alerts read the periods it closes
func (j *jobs) runAll(ctx context.Context, date time.Time) error {
	if err := j.aggregate(ctx, date); err != nil {
		return err
	}
	if err := j.benchmarks(ctx); err != nil {
		return err
	}
	_, err := j.alerts(ctx)
	return err
}
