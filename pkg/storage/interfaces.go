package storage

import (
	"fmt"
	"time"
)

// Backend types
const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Config holds storage backend configuration
type Config struct {
	Type string `yaml:"type"` // "postgres" or "sqlite"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// SQLite config, for single-node and development setups
	SQLitePath string `yaml:"sqlite_path"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Benchmark cache config
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	L1CacheSize  int           `yaml:"l1_cache_size"` // entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypePostgres,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		SQLitePath:       "insights.db",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL:         1 * time.Hour,
		L1CacheSize:      1024,
	}
}

// Validate checks that the selected backend is fully configured
func (c Config) Validate() error {
	switch c.Type {
	case TypePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for storage type %q", c.Type)
		}
		if c.PostgresMaxConns < 1 {
			return fmt.Errorf("postgres max connections must be at least 1")
		}
	case TypeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for storage type %q", c.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Type)
	}

	if c.CacheEnabled {
		if c.CacheTTL <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
		if c.L1CacheSize < 1 {
			return fmt.Errorf("L1 cache size must be at least 1")
		}
	}
	return nil
}
