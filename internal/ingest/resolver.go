package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/ventura/internal/model"
)

// Resolver maps names to canonical entity ids through a Store and tallies
// how many entities were created versus matched.
type Resolver struct {
	store Store
	stats *Stats
}

// NewResolver returns a Resolver that records its counts in stats.
func NewResolver(store Store, stats *Stats) *Resolver {
	return &Resolver{store: store, stats: stats}
}

// Startup upserts s and returns its id.
func (r *Resolver) Startup(ctx context.Context, s model.Startup) (uuid.UUID, error) {
	id, created, err := r.store.UpsertStartup(ctx, s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert startup %q: %w", s.Name, err)
	}
	if created {
		r.stats.StartupsInserted++
	} else {
		r.stats.StartupsUpdated++
	}
	return id, nil
}

// Founder returns the id of the founder called name, creating it if needed.
func (r *Resolver) Founder(ctx context.Context, name string) (uuid.UUID, error) {
	id, created, err := r.store.UpsertFounder(ctx, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert founder %q: %w", name, err)
	}
	if created {
		r.stats.FoundersInserted++
	}
	return id, nil
}

// Investor returns the id of the investor called name, creating it if needed.
func (r *Resolver) Investor(ctx context.Context, name string) (uuid.UUID, error) {
	id, created, err := r.store.UpsertInvestor(ctx, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert investor %q: %w", name, err)
	}
	if created {
		r.stats.InvestorsInserted++
	}
	return id, nil
}

// Linker writes the relationship records of a row.
type Linker struct {
	store Store
	stats *Stats
}

// NewLinker returns a Linker that records its counts in stats.
func NewLinker(store Store, stats *Stats) *Linker {
	return &Linker{store: store, stats: stats}
}

// LinkFounder associates a founder with a startup. Repeated links are no-ops.
func (l *Linker) LinkFounder(ctx context.Context, startupID, founderID uuid.UUID) error {
	created, err := l.store.LinkFounder(ctx, startupID, founderID)
	if err != nil {
		return fmt.Errorf("link founder: %w", err)
	}
	if created {
		l.stats.FounderLinks++
	}
	return nil
}

// InsertFundingRound appends one round.
func (l *Linker) InsertFundingRound(ctx context.Context, round model.FundingRound) error {
	if _, err := l.store.InsertFundingRound(ctx, round); err != nil {
		return fmt.Errorf("insert funding round: %w", err)
	}
	l.stats.FundingRoundsInserted++
	return nil
}
