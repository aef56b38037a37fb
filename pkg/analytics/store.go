package analytics

import (
	"context"
	"time"
)

// SnapshotStore persists the current user and creator rollups. Get methods
// return ErrNotFound when no row exists.
type SnapshotStore interface {
	GetUserSnapshot(ctx context.Context, userID string) (*UserSnapshot, error)
	UpsertUserSnapshot(ctx context.Context, snapshot *UserSnapshot) error
	ListUserSnapshots(ctx context.Context, userIDs []string) ([]*UserSnapshot, error)

	GetCreatorSnapshot(ctx context.Context, creatorID string) (*CreatorSnapshot, error)
	UpsertCreatorSnapshot(ctx context.Context, snapshot *CreatorSnapshot) error
	ListCreatorSnapshots(ctx context.Context, category string) ([]*CreatorSnapshot, error)
	ListCreatorIDs(ctx context.Context) ([]string, error)
}

// RevenueSeriesStore holds the append-only revenue time series
type RevenueSeriesStore interface {
	// ListRevenueHistory returns up to limit points, most recent first
	ListRevenueHistory(ctx context.Context, creatorID string, limit int) ([]RevenueDataPoint, error)
	// AppendRevenueDataPoint writes a closed period; an existing period is left untouched
	AppendRevenueDataPoint(ctx context.Context, point RevenueDataPoint) error
}

// BenchmarkStore holds peer-group benchmarks
type BenchmarkStore interface {
	// GetLatestBenchmark returns the benchmark with the most recent date for the pair
	GetLatestBenchmark(ctx context.Context, category string, tier Tier) (*Benchmark, error)
	SaveBenchmark(ctx context.Context, benchmark *Benchmark) error
}

// SessionLog is the append-only session log owned by the platform
type SessionLog interface {
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)
	InsertSession(ctx context.Context, session SessionRecord) error
}

// PaymentLedger exposes payment rows scoped by payer or creator
type PaymentLedger interface {
	ListPaymentsByPayer(ctx context.Context, payerID string) ([]PaymentRecord, error)
	ListPaymentsByCreator(ctx context.Context, creatorID string) ([]PaymentRecord, error)
	ListPaymentsByCreatorBetween(ctx context.Context, creatorID string, from, to time.Time) ([]PaymentRecord, error)
}

// SocialGraph exposes likes, views and reviews
type SocialGraph interface {
	ListInteractionsByUser(ctx context.Context, userID string) ([]InteractionRecord, error)
	ListInteractionsForCreator(ctx context.Context, creatorID string) ([]InteractionRecord, error)
	ListReviewsForCreator(ctx context.Context, creatorID string) ([]ReviewRecord, error)
}

// ProfileDirectory resolves creator profile attributes
type ProfileDirectory interface {
	GetCreatorProfile(ctx context.Context, creatorID string) (*CreatorProfile, error)
}

// Store composes every persistence capability the engine consumes
type Store interface {
	SnapshotStore
	RevenueSeriesStore
	BenchmarkStore
	SessionLog
	PaymentLedger
	SocialGraph
	ProfileDirectory
}
