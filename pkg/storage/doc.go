// Package storage holds backend configuration shared by the SQL store and
// the benchmark cache.
//
// The SQL implementation of the analytics store lives in storage/postgres.
// It runs against PostgreSQL in production and SQLite for single-node and
// development setups; Redis backs the optional benchmark cache.
package storage
