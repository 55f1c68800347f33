package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/ventura/internal/model"
)

// MemoryStore is an in-process Store. It applies the same identity and
// coalescing rules as the Postgres store: startups match case-insensitively,
// founders and investors match on exact name.
type MemoryStore struct {
	mu sync.Mutex

	startups  map[string]*model.Startup // keyed by lower(name)
	founders  map[string]uuid.UUID
	investors map[string]uuid.UUID
	links     map[[2]uuid.UUID]struct{}
	rounds    []model.FundingRound
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		startups:  make(map[string]*model.Startup),
		founders:  make(map[string]uuid.UUID),
		investors: make(map[string]uuid.UUID),
		links:     make(map[[2]uuid.UUID]struct{}),
	}
}

var errEmptyName = errors.New("ingest: empty name")

func (m *MemoryStore) UpsertStartup(ctx context.Context, s model.Startup) (uuid.UUID, bool, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, false, err
	}
	if s.Name == "" {
		return uuid.Nil, false, errEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := strings.ToLower(s.Name)
	if cur, ok := m.startups[key]; ok {
		cur.FoundingDate = coalesce(s.FoundingDate, cur.FoundingDate)
		cur.City = coalesce(s.City, cur.City)
		cur.Industry = coalesce(s.Industry, cur.Industry)
		cur.SubVertical = coalesce(s.SubVertical, cur.SubVertical)
		cur.UpdatedAt = now
		return cur.ID, false, nil
	}
	s.ID = uuid.New()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.startups[key] = &s
	return s.ID, true, nil
}

func (m *MemoryStore) UpsertFounder(ctx context.Context, name string) (uuid.UUID, bool, error) {
	return m.upsertName(ctx, m.founders, name)
}

func (m *MemoryStore) UpsertInvestor(ctx context.Context, name string) (uuid.UUID, bool, error) {
	return m.upsertName(ctx, m.investors, name)
}

func (m *MemoryStore) upsertName(ctx context.Context, table map[string]uuid.UUID, name string) (uuid.UUID, bool, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, false, err
	}
	if name == "" {
		return uuid.Nil, false, errEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := table[name]; ok {
		return id, false, nil
	}
	id := uuid.New()
	table[name] = id
	return id, true, nil
}

func (m *MemoryStore) LinkFounder(ctx context.Context, startupID, founderID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]uuid.UUID{startupID, founderID}
	if _, ok := m.links[key]; ok {
		return false, nil
	}
	m.links[key] = struct{}{}
	return true, nil
}

func (m *MemoryStore) InsertFundingRound(ctx context.Context, r model.FundingRound) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()
	m.rounds = append(m.rounds, r)
	return r.ID, nil
}

// Counts returns the number of records in each table.
func (m *MemoryStore) Counts() model.TableCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.TableCounts{
		Startups:        int64(len(m.startups)),
		Founders:        int64(len(m.founders)),
		Investors:       int64(len(m.investors)),
		StartupFounders: int64(len(m.links)),
		FundingRounds:   int64(len(m.rounds)),
	}
}

// Startup returns a copy of the startup stored under name (case-insensitive).
func (m *MemoryStore) Startup(name string) (model.Startup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.startups[strings.ToLower(name)]
	if !ok {
		return model.Startup{}, false
	}
	return *s, true
}

// FundingRounds returns a copy of every round in insertion order.
func (m *MemoryStore) FundingRounds() []model.FundingRound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.FundingRound, len(m.rounds))
	copy(out, m.rounds)
	return out
}

func coalesce[T any](incoming, stored *T) *T {
	if incoming != nil {
		return incoming
	}
	return stored
}
