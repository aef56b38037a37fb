package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertThresholds are month-over-month declines expressed as positive fractions
type AlertThresholds struct {
	Warning  float64
	Critical float64
}

// DefaultAlertThresholds flags a 20% monthly drop as a warning and 50% as critical
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{Warning: 0.2, Critical: 0.5}
}

// RevenueAlert flags a creator whose latest closed period fell sharply
type RevenueAlert struct {
	CreatorID            string    `json:"creator_id"`
	Severity             string    `json:"severity"`
	MonthOverMonthGrowth float64   `json:"month_over_month_growth"`
	LatestRevenue        float64   `json:"latest_revenue"`
	PreviousRevenue      float64   `json:"previous_revenue"`
	PeriodStart          time.Time `json:"period_start"`
}

// RevenueAlerter scans revenue history for sudden declines
type RevenueAlerter struct {
	snapshots  SnapshotStore
	revenue    RevenueSeriesStore
	thresholds AlertThresholds
}

// NewRevenueAlerter creates a new revenue alerter
func NewRevenueAlerter(snapshots SnapshotStore, revenue RevenueSeriesStore, thresholds AlertThresholds) *RevenueAlerter {
	return &RevenueAlerter{
		snapshots:  snapshots,
		revenue:    revenue,
		thresholds: thresholds,
	}
}

// Check evaluates a single creator. It returns nil when no threshold is crossed.
func (a *RevenueAlerter) Check(ctx context.Context, creatorID string) (*RevenueAlert, error) {
	history, err := a.revenue.ListRevenueHistory(ctx, creatorID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to list revenue history: %w", err)
	}
	if len(history) < 2 {
		return nil, nil
	}

	growth := SummarizeTrend(history).MonthOverMonthGrowth
	severity := a.severityFor(growth)
	if severity == "" {
		return nil, nil
	}

	return &RevenueAlert{
		CreatorID:            creatorID,
		Severity:             severity,
		MonthOverMonthGrowth: growth,
		LatestRevenue:        history[0].TotalRevenue,
		PreviousRevenue:      history[1].TotalRevenue,
		PeriodStart:          history[0].PeriodStart,
	}, nil
}

// CheckAll evaluates every creator with a snapshot, worst decline first
func (a *RevenueAlerter) CheckAll(ctx context.Context) ([]RevenueAlert, error) {
	creatorIDs, err := a.snapshots.ListCreatorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}

	alerts := []RevenueAlert{}
	for _, id := range creatorIDs {
		alert, err := a.Check(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("creator %s: %w", id, err)
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].MonthOverMonthGrowth < alerts[j].MonthOverMonthGrowth
	})
	return alerts, nil
}

func (a *RevenueAlerter) severityFor(growth float64) string {
	switch {
	case a.thresholds.Critical > 0 && growth <= -a.thresholds.Critical:
		return SeverityCritical
	case a.thresholds.Warning > 0 && growth <= -a.thresholds.Warning:
		return SeverityWarning
	default:
		return ""
	}
}
