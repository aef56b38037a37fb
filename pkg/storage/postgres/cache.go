package postgres

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/observability"
)

const (
	cacheTypeBenchmark = "benchmark"
	layerL1            = "l1"
	layerL2            = "l2"
)

// BenchmarkCache is a read-through cache of the latest benchmark per
// (category, tier). L1 is an in-process expiring LRU; L2 is Redis and may be
// nil. Cache failures fall through to the underlying store.
type BenchmarkCache struct {
	store   analytics.BenchmarkStore
	l1      *lru.LRU[string, *analytics.Benchmark]
	l2      *RedisClient
	metrics *observability.Metrics
	logger  *observability.Logger
}

var _ analytics.BenchmarkStore = (*BenchmarkCache)(nil)

// NewBenchmarkCache wraps store with the two cache layers
func NewBenchmarkCache(store analytics.BenchmarkStore, l2 *RedisClient, size int, ttl time.Duration, metrics *observability.Metrics, logger *observability.Logger) *BenchmarkCache {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &BenchmarkCache{
		store:   store,
		l1:      lru.NewLRU[string, *analytics.Benchmark](size, nil, ttl),
		l2:      l2,
		metrics: metrics,
		logger:  logger,
	}
}

// GetLatestBenchmark checks L1, then L2, then the store, filling the layers
// above on the way back
func (c *BenchmarkCache) GetLatestBenchmark(ctx context.Context, category string, tier analytics.Tier) (*analytics.Benchmark, error) {
	key := benchmarkKey(category, tier)

	if b, ok := c.l1.Get(key); ok {
		c.metrics.RecordCacheHit(cacheTypeBenchmark, layerL1)
		return copyBenchmark(b), nil
	}
	c.metrics.RecordCacheMiss(cacheTypeBenchmark, layerL1)

	if c.l2 != nil {
		b, err := c.l2.GetBenchmark(ctx, category, tier)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Benchmark cache read failed")
		}
		if b != nil {
			c.metrics.RecordCacheHit(cacheTypeBenchmark, layerL2)
			c.l1.Add(key, b)
			return copyBenchmark(b), nil
		}
		c.metrics.RecordCacheMiss(cacheTypeBenchmark, layerL2)
	}

	b, err := c.store.GetLatestBenchmark(ctx, category, tier)
	if err != nil {
		return nil, err
	}

	c.l1.Add(key, b)
	if c.l2 != nil {
		if err := c.l2.SetBenchmark(ctx, b); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Benchmark cache write failed")
		}
	}
	return copyBenchmark(b), nil
}

// SaveBenchmark writes through to the store and drops cached entries for the pair
func (c *BenchmarkCache) SaveBenchmark(ctx context.Context, benchmark *analytics.Benchmark) error {
	if err := c.store.SaveBenchmark(ctx, benchmark); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, benchmark.Category, benchmark.Tier); err != nil {
		c.logger.WithError(err).Warn("Benchmark cache invalidation failed")
	}
	return nil
}

// Invalidate removes the pair from both layers
func (c *BenchmarkCache) Invalidate(ctx context.Context, category string, tier analytics.Tier) error {
	c.l1.Remove(benchmarkKey(category, tier))
	if c.l2 == nil {
		return nil
	}
	if err := c.l2.InvalidateBenchmark(ctx, category, tier); err != nil {
		return fmt.Errorf("failed to invalidate benchmark: %w", err)
	}
	return nil
}

// Len returns the number of L1 entries
func (c *BenchmarkCache) Len() int {
	return c.l1.Len()
}

func copyBenchmark(b *analytics.Benchmark) *analytics.Benchmark {
	cp := *b
	if b.Percentiles != nil {
		table := *b.Percentiles
		cp.Percentiles = &table
	}
	return &cp
}
