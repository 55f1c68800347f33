// Package ingest drives the CSV-to-relational migration: it resolves startups,
// founders, and investors by name, links founders to startups, and appends
// one funding round per investor for every row it reads.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/ashita-ai/ventura/internal/model"
)

// Store is the write side of the entity store. storage.DB implements it
// against Postgres; MemoryStore implements it in-process for dry runs and
// tests.
//
// The upserts return the canonical id for the name and whether a new record
// was created. Startup attributes are coalesced: a non-null incoming value
// replaces the stored one, a null incoming value never clobbers it.
type Store interface {
	UpsertStartup(ctx context.Context, s model.Startup) (uuid.UUID, bool, error)
	UpsertFounder(ctx context.Context, name string) (uuid.UUID, bool, error)
	UpsertInvestor(ctx context.Context, name string) (uuid.UUID, bool, error)

	// LinkFounder records the (startup, founder) pair. It reports whether the
	// pair was new; linking an existing pair is a no-op.
	LinkFounder(ctx context.Context, startupID, founderID uuid.UUID) (bool, error)

	// InsertFundingRound appends a round. Rounds are never deduplicated.
	InsertFundingRound(ctx context.Context, r model.FundingRound) (uuid.UUID, error)
}
