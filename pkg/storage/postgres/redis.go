package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/storage"
)

const benchmarkKeyPrefix = "insights:benchmark"

// RedisClient caches latest benchmarks in Redis
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client and verifies connectivity
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisClientFrom(client, config.CacheTTL), nil
}

// NewRedisClientFrom wraps an existing client
func NewRedisClientFrom(client *redis.Client, ttl time.Duration) *RedisClient {
	return &RedisClient{client: client, ttl: ttl}
}

func benchmarkKey(category string, tier analytics.Tier) string {
	return fmt.Sprintf("%s:%s:%s", benchmarkKeyPrefix, category, tier)
}

// GetBenchmark returns the cached benchmark, or nil on a miss
func (c *RedisClient) GetBenchmark(ctx context.Context, category string, tier analytics.Tier) (*analytics.Benchmark, error) {
	key := benchmarkKey(category, tier)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var b analytics.Benchmark
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		// drop corrupt entries so the next read refills from the store
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal benchmark: %w", err)
	}
	return &b, nil
}

// SetBenchmark stores a benchmark under its (category, tier) key
func (c *RedisClient) SetBenchmark(ctx context.Context, b *analytics.Benchmark) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal benchmark: %w", err)
	}
	return c.client.Set(ctx, benchmarkKey(b.Category, b.Tier), data, c.ttl).Err()
}

// InvalidateBenchmark removes the cached benchmark for the pair
func (c *RedisClient) InvalidateBenchmark(ctx context.Context, category string, tier analytics.Tier) error {
	return c.client.Del(ctx, benchmarkKey(category, tier)).Err()
}

// InvalidateAll removes every cached benchmark
func (c *RedisClient) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, benchmarkKeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for health checks
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}
