package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
)

// SQLStore implements analytics.Store over PostgreSQL or SQLite. Writes go to
// the primary; reads go to a replica when one is configured.
type SQLStore struct {
	conns *ConnectionManager
}

var _ analytics.Store = (*SQLStore)(nil)

// NewSQLStore creates a store backed by the given connections
func NewSQLStore(conns *ConnectionManager) *SQLStore {
	return &SQLStore{conns: conns}
}

func (s *SQLStore) reader() *sql.DB { return s.conns.Replica() }
func (s *SQLStore) writer() *sql.DB { return s.conns.Primary() }

const userSnapshotColumns = `user_id, total_sessions, avg_session_duration, total_personas_viewed,
	total_personas_interacted, conversion_rate, total_spent, age_range, gender, location,
	preferred_categories, most_used_features, visit_streak, last_calculated`

func scanUserSnapshot(row interface{ Scan(...interface{}) error }) (*analytics.UserSnapshot, error) {
	var (
		snap       analytics.UserSnapshot
		preferred  string
		mostUsed   string
		calculated time.Time
	)
	err := row.Scan(
		&snap.UserID,
		&snap.Engagement.TotalSessions,
		&snap.Engagement.AvgSessionDuration,
		&snap.Engagement.TotalPersonasViewed,
		&snap.Engagement.TotalPersonasInteracted,
		&snap.Engagement.ConversionRate,
		&snap.Engagement.TotalSpent,
		&snap.Demographics.AgeRange,
		&snap.Demographics.Gender,
		&snap.Demographics.Location,
		&preferred,
		&mostUsed,
		&snap.Behavior.VisitStreak,
		&calculated,
	)
	if err != nil {
		return nil, err
	}
	snap.Behavior.PreferredCategories = decodeList(preferred)
	snap.Behavior.MostUsedFeatures = decodeList(mostUsed)
	snap.LastCalculated = calculated.UTC()
	return &snap, nil
}

// GetUserSnapshot returns the user's analytics row
func (s *SQLStore) GetUserSnapshot(ctx context.Context, userID string) (*analytics.UserSnapshot, error) {
	query := `SELECT ` + userSnapshotColumns + ` FROM user_analytics WHERE user_id = $1`

	snap, err := scanUserSnapshot(s.reader().QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user analytics %s: %w", userID, analytics.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user analytics: %w", err)
	}
	return snap, nil
}

// UpsertUserSnapshot writes the derived user metrics. Demographics are
// owned by the profile service and are never overwritten here.
func (s *SQLStore) UpsertUserSnapshot(ctx context.Context, snapshot *analytics.UserSnapshot) error {
	query := `
		INSERT INTO user_analytics (user_id, total_sessions, avg_session_duration, total_personas_viewed,
			total_personas_interacted, conversion_rate, total_spent, preferred_categories,
			most_used_features, visit_streak, last_calculated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			total_sessions = excluded.total_sessions,
			avg_session_duration = excluded.avg_session_duration,
			total_personas_viewed = excluded.total_personas_viewed,
			total_personas_interacted = excluded.total_personas_interacted,
			conversion_rate = excluded.conversion_rate,
			total_spent = excluded.total_spent,
			preferred_categories = excluded.preferred_categories,
			most_used_features = excluded.most_used_features,
			visit_streak = excluded.visit_streak,
			last_calculated = excluded.last_calculated
	`

	_, err := s.writer().ExecContext(ctx, query,
		snapshot.UserID,
		snapshot.Engagement.TotalSessions,
		snapshot.Engagement.AvgSessionDuration,
		snapshot.Engagement.TotalPersonasViewed,
		snapshot.Engagement.TotalPersonasInteracted,
		snapshot.Engagement.ConversionRate,
		snapshot.Engagement.TotalSpent,
		encodeList(snapshot.Behavior.PreferredCategories),
		encodeList(snapshot.Behavior.MostUsedFeatures),
		snapshot.Behavior.VisitStreak,
		snapshot.LastCalculated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user analytics: %w", err)
	}
	return nil
}

// ListUserSnapshots returns the rows that exist for userIDs, in user id order
func (s *SQLStore) ListUserSnapshots(ctx context.Context, userIDs []string) ([]*analytics.UserSnapshot, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + userSnapshotColumns + ` FROM user_analytics WHERE user_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY user_id`

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user analytics: %w", err)
	}
	defer rows.Close()

	var snapshots []*analytics.UserSnapshot
	for rows.Next() {
		snap, err := scanUserSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user analytics: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

const creatorSnapshotColumns = `creator_id, category, total_revenue, monthly_recurring_revenue,
	subscriber_count, average_rating, review_count, total_views, total_likes, engagement_rate,
	tier, last_calculated`

func scanCreatorSnapshot(row interface{ Scan(...interface{}) error }) (*analytics.CreatorSnapshot, error) {
	var (
		snap       analytics.CreatorSnapshot
		tier       string
		calculated time.Time
	)
	err := row.Scan(
		&snap.CreatorID,
		&snap.Category,
		&snap.Revenue.TotalRevenue,
		&snap.Revenue.MonthlyRecurringRevenue,
		&snap.Revenue.SubscriberCount,
		&snap.Revenue.AverageRating,
		&snap.Revenue.ReviewCount,
		&snap.Revenue.TotalViews,
		&snap.Revenue.TotalLikes,
		&snap.Revenue.EngagementRate,
		&tier,
		&calculated,
	)
	if err != nil {
		return nil, err
	}
	snap.Tier = analytics.Tier(tier)
	snap.LastCalculated = calculated.UTC()
	return &snap, nil
}

// GetCreatorSnapshot returns the creator's analytics row
func (s *SQLStore) GetCreatorSnapshot(ctx context.Context, creatorID string) (*analytics.CreatorSnapshot, error) {
	query := `SELECT ` + creatorSnapshotColumns + ` FROM creator_analytics WHERE creator_id = $1`

	snap, err := scanCreatorSnapshot(s.reader().QueryRowContext(ctx, query, creatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creator analytics %s: %w", creatorID, analytics.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creator analytics: %w", err)
	}
	return snap, nil
}

// UpsertCreatorSnapshot inserts or replaces the creator's analytics row
func (s *SQLStore) UpsertCreatorSnapshot(ctx context.Context, snapshot *analytics.CreatorSnapshot) error {
	query := `
		INSERT INTO creator_analytics (creator_id, category, total_revenue, monthly_recurring_revenue,
			subscriber_count, average_rating, review_count, total_views, total_likes, engagement_rate,
			tier, last_calculated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (creator_id) DO UPDATE SET
			category = excluded.category,
			total_revenue = excluded.total_revenue,
			monthly_recurring_revenue = excluded.monthly_recurring_revenue,
			subscriber_count = excluded.subscriber_count,
			average_rating = excluded.average_rating,
			review_count = excluded.review_count,
			total_views = excluded.total_views,
			total_likes = excluded.total_likes,
			engagement_rate = excluded.engagement_rate,
			tier = excluded.tier,
			last_calculated = excluded.last_calculated
	`

	_, err := s.writer().ExecContext(ctx, query,
		snapshot.CreatorID,
		snapshot.Category,
		snapshot.Revenue.TotalRevenue,
		snapshot.Revenue.MonthlyRecurringRevenue,
		snapshot.Revenue.SubscriberCount,
		snapshot.Revenue.AverageRating,
		snapshot.Revenue.ReviewCount,
		snapshot.Revenue.TotalViews,
		snapshot.Revenue.TotalLikes,
		snapshot.Revenue.EngagementRate,
		string(snapshot.Tier),
		snapshot.LastCalculated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert creator analytics: %w", err)
	}
	return nil
}

// ListCreatorSnapshots returns every creator row in category
func (s *SQLStore) ListCreatorSnapshots(ctx context.Context, category string) ([]*analytics.CreatorSnapshot, error) {
	query := `SELECT ` + creatorSnapshotColumns + ` FROM creator_analytics WHERE category = $1 ORDER BY creator_id`

	rows, err := s.reader().QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator analytics: %w", err)
	}
	defer rows.Close()

	var snapshots []*analytics.CreatorSnapshot
	for rows.Next() {
		snap, err := scanCreatorSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan creator analytics: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// ListCreatorIDs returns every creator known from snapshots or profiles
func (s *SQLStore) ListCreatorIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT creator_id FROM creator_analytics
		UNION
		SELECT creator_id FROM creator_profiles
		ORDER BY creator_id
	`

	rows, err := s.reader().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan creator id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRevenueHistory returns up to limit closed periods, most recent first
func (s *SQLStore) ListRevenueHistory(ctx context.Context, creatorID string, limit int) ([]analytics.RevenueDataPoint, error) {
	query := `
		SELECT creator_id, period_start, total_revenue, subscriber_count
		FROM revenue_data_points
		WHERE creator_id = $1
		ORDER BY period_start DESC
		LIMIT $2
	`

	rows, err := s.reader().QueryContext(ctx, query, creatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list revenue history: %w", err)
	}
	defer rows.Close()

	var points []analytics.RevenueDataPoint
	for rows.Next() {
		var p analytics.RevenueDataPoint
		if err := rows.Scan(&p.CreatorID, &p.PeriodStart, &p.TotalRevenue, &p.SubscriberCount); err != nil {
			return nil, fmt.Errorf("failed to scan revenue data point: %w", err)
		}
		p.PeriodStart = p.PeriodStart.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// AppendRevenueDataPoint records a closed period. A period that already
// exists is left untouched.
func (s *SQLStore) AppendRevenueDataPoint(ctx context.Context, point analytics.RevenueDataPoint) error {
	query := `
		INSERT INTO revenue_data_points (creator_id, period_start, total_revenue, subscriber_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (creator_id, period_start) DO NOTHING
	`

	_, err := s.writer().ExecContext(ctx, query,
		point.CreatorID,
		point.PeriodStart.UTC(),
		point.TotalRevenue,
		point.SubscriberCount,
	)
	if err != nil {
		return fmt.Errorf("failed to append revenue data point: %w", err)
	}
	return nil
}

// GetLatestBenchmark returns the most recent benchmark for the pair
func (s *SQLStore) GetLatestBenchmark(ctx context.Context, category string, tier analytics.Tier) (*analytics.Benchmark, error) {
	query := `
		SELECT id, category, tier, median_views, median_subscribers, median_revenue,
			median_view_to_subscribe_rate, percentiles, sample_size, benchmark_date
		FROM benchmarks
		WHERE category = $1 AND tier = $2
		ORDER BY benchmark_date DESC
		LIMIT 1
	`

	var (
		b           analytics.Benchmark
		tierName    string
		percentiles sql.NullString
	)
	err := s.reader().QueryRowContext(ctx, query, category, string(tier)).Scan(
		&b.ID,
		&b.Category,
		&tierName,
		&b.MedianViews,
		&b.MedianSubscribers,
		&b.MedianRevenue,
		&b.MedianViewToSubscribeRate,
		&percentiles,
		&b.SampleSize,
		&b.BenchmarkDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("benchmark %s/%s: %w", category, tier, analytics.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get benchmark: %w", err)
	}

	b.Tier = analytics.Tier(tierName)
	b.BenchmarkDate = b.BenchmarkDate.UTC()
	if percentiles.Valid && percentiles.String != "" {
		var table analytics.PercentileTable
		if err := json.Unmarshal([]byte(percentiles.String), &table); err != nil {
			return nil, fmt.Errorf("failed to decode benchmark percentiles: %w", err)
		}
		b.Percentiles = &table
	}
	return &b, nil
}

// SaveBenchmark stores a benchmark. A later save for the same (category,
// tier, date) replaces the row, so the latest generation of the day wins.
func (s *SQLStore) SaveBenchmark(ctx context.Context, benchmark *analytics.Benchmark) error {
	id := benchmark.ID
	if id == "" {
		id = uuid.New().String()
	}

	var percentiles sql.NullString
	if benchmark.Percentiles != nil {
		data, err := json.Marshal(benchmark.Percentiles)
		if err != nil {
			return fmt.Errorf("failed to encode benchmark percentiles: %w", err)
		}
		percentiles = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO benchmarks (id, category, tier, median_views, median_subscribers, median_revenue,
			median_view_to_subscribe_rate, percentiles, sample_size, benchmark_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (category, tier, benchmark_date) DO UPDATE SET
			id = excluded.id,
			median_views = excluded.median_views,
			median_subscribers = excluded.median_subscribers,
			median_revenue = excluded.median_revenue,
			median_view_to_subscribe_rate = excluded.median_view_to_subscribe_rate,
			percentiles = excluded.percentiles,
			sample_size = excluded.sample_size
	`

	_, err := s.writer().ExecContext(ctx, query,
		id,
		benchmark.Category,
		string(benchmark.Tier),
		benchmark.MedianViews,
		benchmark.MedianSubscribers,
		benchmark.MedianRevenue,
		benchmark.MedianViewToSubscribeRate,
		percentiles,
		benchmark.SampleSize,
		benchmark.BenchmarkDate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save benchmark: %w", err)
	}
	return nil
}

// ListSessions returns the user's sessions, oldest first
func (s *SQLStore) ListSessions(ctx context.Context, userID string) ([]analytics.SessionRecord, error) {
	query := `
		SELECT id, user_id, started_at, duration_seconds, pages_visited, personas_viewed,
			personas_interacted, conversions, device_type, ip_address, user_agent
		FROM user_sessions
		WHERE user_id = $1
		ORDER BY started_at
	`

	rows, err := s.reader().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []analytics.SessionRecord
	for rows.Next() {
		var (
			rec                        analytics.SessionRecord
			pages, viewed, interacted string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.StartedAt,
			&rec.DurationSeconds,
			&pages,
			&viewed,
			&interacted,
			&rec.Conversions,
			&rec.DeviceType,
			&rec.IPAddress,
			&rec.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.StartedAt = rec.StartedAt.UTC()
		rec.PagesVisited = decodeList(pages)
		rec.PersonasViewed = decodeList(viewed)
		rec.PersonasInteracted = decodeList(interacted)
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// InsertSession appends a session to the log
func (s *SQLStore) InsertSession(ctx context.Context, session analytics.SessionRecord) error {
	query := `
		INSERT INTO user_sessions (id, user_id, started_at, duration_seconds, pages_visited,
			personas_viewed, personas_interacted, conversions, device_type, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.writer().ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.StartedAt.UTC(),
		session.DurationSeconds,
		encodeList(session.PagesVisited),
		encodeList(session.PersonasViewed),
		encodeList(session.PersonasInteracted),
		session.Conversions,
		session.DeviceType,
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

const paymentColumns = `id, payer_id, creator_id, amount, created_at`

func (s *SQLStore) queryPayments(ctx context.Context, query string, args ...interface{}) ([]analytics.PaymentRecord, error) {
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []analytics.PaymentRecord
	for rows.Next() {
		var (
			p      analytics.PaymentRecord
			amount sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.PayerID, &p.CreatorID, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = amount.String
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListPaymentsByPayer returns payments made by payerID
func (s *SQLStore) ListPaymentsByPayer(ctx context.Context, payerID string) ([]analytics.PaymentRecord, error) {
	return s.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payer_id = $1 ORDER BY created_at`,
		payerID)
}

// ListPaymentsByCreator returns payments received by creatorID
func (s *SQLStore) ListPaymentsByCreator(ctx context.Context, creatorID string) ([]analytics.PaymentRecord, error) {
	return s.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE creator_id = $1 ORDER BY created_at`,
		creatorID)
}

// ListPaymentsByCreatorBetween returns payments received in [from, to)
func (s *SQLStore) ListPaymentsByCreatorBetween(ctx context.Context, creatorID string, from, to time.Time) ([]analytics.PaymentRecord, error) {
	return s.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE creator_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		creatorID, from.UTC(), to.UTC())
}

func (s *SQLStore) queryInteractions(ctx context.Context, query string, arg string) ([]analytics.InteractionRecord, error) {
	rows, err := s.reader().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []analytics.InteractionRecord
	for rows.Next() {
		var (
			i    analytics.InteractionRecord
			kind string
		)
		if err := rows.Scan(&i.UserID, &i.CreatorID, &i.PersonaID, &i.PersonaCategory, &kind, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		i.Kind = analytics.InteractionKind(kind)
		i.CreatedAt = i.CreatedAt.UTC()
		interactions = append(interactions, i)
	}
	return interactions, rows.Err()
}

// ListInteractionsByUser returns views and likes made by userID
func (s *SQLStore) ListInteractionsByUser(ctx context.Context, userID string) ([]analytics.InteractionRecord, error) {
	return s.queryInteractions(ctx, `
		SELECT user_id, creator_id, persona_id, persona_category, kind, created_at
		FROM persona_interactions WHERE user_id = $1 ORDER BY created_at`, userID)
}

// ListInteractionsForCreator returns views and likes of creatorID's personas
func (s *SQLStore) ListInteractionsForCreator(ctx context.Context, creatorID string) ([]analytics.InteractionRecord, error) {
	return s.queryInteractions(ctx, `
		SELECT user_id, creator_id, persona_id, persona_category, kind, created_at
		FROM persona_interactions WHERE creator_id = $1 ORDER BY created_at`, creatorID)
}

// ListReviewsForCreator returns reviews of creatorID's personas
func (s *SQLStore) ListReviewsForCreator(ctx context.Context, creatorID string) ([]analytics.ReviewRecord, error) {
	query := `SELECT id, creator_id, user_id, rating FROM persona_reviews WHERE creator_id = $1 ORDER BY id`

	rows, err := s.reader().QueryContext(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []analytics.ReviewRecord
	for rows.Next() {
		var (
			r      analytics.ReviewRecord
			rating sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.CreatorID, &r.UserID, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if rating.Valid {
			value := rating.Float64
			r.Rating = &value
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// GetCreatorProfile returns the creator's profile attributes
func (s *SQLStore) GetCreatorProfile(ctx context.Context, creatorID string) (*analytics.CreatorProfile, error) {
	query := `SELECT creator_id, display_name, category FROM creator_profiles WHERE creator_id = $1`

	var p analytics.CreatorProfile
	err := s.reader().QueryRowContext(ctx, query, creatorID).Scan(&p.CreatorID, &p.DisplayName, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creator profile %s: %w", creatorID, analytics.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creator profile: %w", err)
	}
	return &p, nil
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeList tolerates empty and malformed columns
func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}
