package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaStatements returns the DDL for the analytics tables and the
// collaborator tables the engine reads from. Every statement is idempotent.
func schemaStatements(d Dialect) []string {
	ts := d.timestampType()
	num := d.floatType()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_analytics (
			user_id TEXT PRIMARY KEY,
			total_sessions BIGINT NOT NULL DEFAULT 0,
			avg_session_duration {num} NOT NULL DEFAULT 0,
			total_personas_viewed BIGINT NOT NULL DEFAULT 0,
			total_personas_interacted BIGINT NOT NULL DEFAULT 0,
			conversion_rate {num} NOT NULL DEFAULT 0,
			total_spent {num} NOT NULL DEFAULT 0,
			age_range TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			preferred_categories TEXT NOT NULL DEFAULT '[]',
			most_used_features TEXT NOT NULL DEFAULT '[]',
			visit_streak INTEGER NOT NULL DEFAULT 0,
			last_calculated {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS creator_analytics (
			creator_id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			total_revenue {num} NOT NULL DEFAULT 0,
			monthly_recurring_revenue {num} NOT NULL DEFAULT 0,
			subscriber_count BIGINT NOT NULL DEFAULT 0,
			average_rating {num} NOT NULL DEFAULT 0,
			review_count BIGINT NOT NULL DEFAULT 0,
			total_views BIGINT NOT NULL DEFAULT 0,
			total_likes BIGINT NOT NULL DEFAULT 0,
			engagement_rate {num} NOT NULL DEFAULT 0,
			tier TEXT NOT NULL,
			last_calculated {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_creator_analytics_category ON creator_analytics (category)`,
		`CREATE TABLE IF NOT EXISTS revenue_data_points (
			creator_id TEXT NOT NULL,
			period_start {ts} NOT NULL,
			total_revenue {num} NOT NULL DEFAULT 0,
			subscriber_count BIGINT NOT NULL DEFAULT 0,
			UNIQUE (creator_id, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS benchmarks (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			tier TEXT NOT NULL,
			median_views {num} NOT NULL DEFAULT 0,
			median_subscribers {num} NOT NULL DEFAULT 0,
			median_revenue {num} NOT NULL DEFAULT 0,
			median_view_to_subscribe_rate {num} NOT NULL DEFAULT 0,
			percentiles TEXT,
			sample_size INTEGER NOT NULL DEFAULT 0,
			benchmark_date {ts} NOT NULL,
			UNIQUE (category, tier, benchmark_date)
		)`,
		`CREATE TABLE IF NOT EXISTS user_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			started_at {ts} NOT NULL,
			duration_seconds {num} NOT NULL DEFAULT 0,
			pages_visited TEXT NOT NULL DEFAULT '[]',
			personas_viewed TEXT NOT NULL DEFAULT '[]',
			personas_interacted TEXT NOT NULL DEFAULT '[]',
			conversions INTEGER NOT NULL DEFAULT 0,
			device_type TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions (user_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			payer_id TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			amount NUMERIC,
			created_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_creator ON payments (creator_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments (payer_id)`,
		`CREATE TABLE IF NOT EXISTS persona_reviews (
			id TEXT PRIMARY KEY,
			creator_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			rating {num}
		)`,
		`CREATE TABLE IF NOT EXISTS persona_interactions (
			user_id TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			persona_id TEXT NOT NULL,
			persona_category TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			created_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_persona_interactions_user ON persona_interactions (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_persona_interactions_creator ON persona_interactions (creator_id)`,
		`CREATE TABLE IF NOT EXISTS creator_profiles (
			creator_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT ''
		)`,
	}

	r := strings.NewReplacer("{ts}", ts, "{num}", num)
	for i, stmt := range stmts {
		stmts[i] = r.Replace(stmt)
	}
	return stmts
}

// Migrate creates any missing tables and indexes
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range schemaStatements(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
