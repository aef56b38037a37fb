package analytics

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store for package tests
type memStore struct {
	mu sync.Mutex

	users      map[string]*UserSnapshot
	creators   map[string]*CreatorSnapshot
	revenue    map[string][]RevenueDataPoint
	benchmarks []*Benchmark

	sessions     []SessionRecord
	payments     []PaymentRecord
	reviews      []ReviewRecord
	interactions []InteractionRecord
	profiles     map[string]*CreatorProfile

	// dropSnapshotWrites simulates a store that accepts upserts but never persists them
	dropSnapshotWrites bool
	// failWith makes the named method return the error
	failWith map[string]error
	// failProfile makes GetCreatorProfile fail for the listed creators
	failProfile map[string]error

	upserts int
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*UserSnapshot),
		creators: make(map[string]*CreatorSnapshot),
		revenue:  make(map[string][]RevenueDataPoint),
		profiles: make(map[string]*CreatorProfile),
		failWith:    make(map[string]error),
		failProfile: make(map[string]error),
	}
}

func (m *memStore) fail(method string) error {
	return m.failWith[method]
}

func (m *memStore) GetUserSnapshot(ctx context.Context, userID string) (*UserSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetUserSnapshot"); err != nil {
		return nil, err
	}
	s, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpsertUserSnapshot(ctx context.Context, snapshot *UserSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertUserSnapshot"); err != nil {
		return err
	}
	m.upserts++
	if m.dropSnapshotWrites {
		return nil
	}
	cp := *snapshot
	if existing, ok := m.users[snapshot.UserID]; ok {
		cp.Demographics = existing.Demographics
	}
	m.users[snapshot.UserID] = &cp
	return nil
}

func (m *memStore) ListUserSnapshots(ctx context.Context, userIDs []string) ([]*UserSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*UserSnapshot
	for _, id := range userIDs {
		if s, ok := m.users[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetCreatorSnapshot(ctx context.Context, creatorID string) (*CreatorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetCreatorSnapshot"); err != nil {
		return nil, err
	}
	s, ok := m.creators[creatorID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpsertCreatorSnapshot(ctx context.Context, snapshot *CreatorSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertCreatorSnapshot"); err != nil {
		return err
	}
	m.upserts++
	if m.dropSnapshotWrites {
		return nil
	}
	cp := *snapshot
	m.creators[snapshot.CreatorID] = &cp
	return nil
}

func (m *memStore) ListCreatorSnapshots(ctx context.Context, category string) ([]*CreatorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*CreatorSnapshot
	for _, s := range m.creators {
		if s.Category == category {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatorID < out[j].CreatorID })
	return out, nil
}

func (m *memStore) ListCreatorIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListCreatorIDs"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for id := range m.creators {
		seen[id] = true
	}
	for id := range m.profiles {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) ListRevenueHistory(ctx context.Context, creatorID string, limit int) ([]RevenueDataPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListRevenueHistory"); err != nil {
		return nil, err
	}
	points := append([]RevenueDataPoint(nil), m.revenue[creatorID]...)
	sort.Slice(points, func(i, j int) bool { return points[i].PeriodStart.After(points[j].PeriodStart) })
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

func (m *memStore) AppendRevenueDataPoint(ctx context.Context, point RevenueDataPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.revenue[point.CreatorID] {
		if p.PeriodStart.Equal(point.PeriodStart) {
			return nil
		}
	}
	m.revenue[point.CreatorID] = append(m.revenue[point.CreatorID], point)
	return nil
}

func (m *memStore) GetLatestBenchmark(ctx context.Context, category string, tier Tier) (*Benchmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Benchmark
	for _, b := range m.benchmarks {
		if b.Category != category || b.Tier != tier {
			continue
		}
		if latest == nil || b.BenchmarkDate.After(latest.BenchmarkDate) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) SaveBenchmark(ctx context.Context, benchmark *Benchmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SaveBenchmark"); err != nil {
		return err
	}
	cp := *benchmark
	for i, b := range m.benchmarks {
		if b.Category == benchmark.Category && b.Tier == benchmark.Tier && b.BenchmarkDate.Equal(benchmark.BenchmarkDate) {
			m.benchmarks[i] = &cp
			return nil
		}
	}
	m.benchmarks = append(m.benchmarks, &cp)
	return nil
}

func (m *memStore) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListSessions"); err != nil {
		return nil, err
	}
	var out []SessionRecord
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertSession(ctx context.Context, session SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertSession"); err != nil {
		return err
	}
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *memStore) ListPaymentsByPayer(ctx context.Context, payerID string) ([]PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentRecord
	for _, p := range m.payments {
		if p.PayerID == payerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListPaymentsByCreator(ctx context.Context, creatorID string) ([]PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListPaymentsByCreator"); err != nil {
		return nil, err
	}
	var out []PaymentRecord
	for _, p := range m.payments {
		if p.CreatorID == creatorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListPaymentsByCreatorBetween(ctx context.Context, creatorID string, from, to time.Time) ([]PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentRecord
	for _, p := range m.payments {
		if p.CreatorID == creatorID && !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListInteractionsByUser(ctx context.Context, userID string) ([]InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InteractionRecord
	for _, i := range m.interactions {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memStore) ListInteractionsForCreator(ctx context.Context, creatorID string) ([]InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InteractionRecord
	for _, i := range m.interactions {
		if i.CreatorID == creatorID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memStore) ListReviewsForCreator(ctx context.Context, creatorID string) ([]ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListReviewsForCreator"); err != nil {
		return nil, err
	}
	var out []ReviewRecord
	for _, r := range m.reviews {
		if r.CreatorID == creatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetCreatorProfile(ctx context.Context, creatorID string) (*CreatorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failProfile[creatorID]; err != nil {
		return nil, err
	}
	p, ok := m.profiles[creatorID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// addPayments records n payments of amount from distinct payers
func (m *memStore) addPayments(creatorID string, n int, amount string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.payments = append(m.payments, PaymentRecord{
			ID:        creatorID + "-pay-" + strconv.Itoa(len(m.payments)),
			PayerID:   creatorID + "-payer-" + strconv.Itoa(i),
			CreatorID: creatorID,
			Amount:    amount,
			CreatedAt: at,
		})
	}
}

var _ Store = (*memStore)(nil)
