// Package analytics aggregates user and creator activity into snapshots,
// forecasts creator revenue and benchmarks creators against their peers.
//
// Snapshots are rollups keyed by owner id. They are recomputed by the
// Aggregator from sessions, payments, reviews and persona interactions and
// created lazily the first time a report asks for them:
//
//	svc := analytics.NewService(store, analytics.WithLogger(logger))
//	report, err := svc.GetCreatorAnalytics(ctx, creatorID)
//
// Revenue forecasts combine three projections of the closed monthly revenue
// history into an ensemble:
//
//	points := analytics.Forecast(history, 6)
//
// Benchmarks hold per category and tier medians and percentile thresholds.
// A creator's standing on each metric is reported as one of five bands
// (25, 50, 75, 90, 95) and turned into recommendations.
//
// Every public Service operation is wrapped so failures are traced, counted
// and logged with the operation name and owner id before being returned.
package analytics
