package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/ventura/internal/model"
)

// UpsertStartup inserts s or, when a startup with the same name (compared
// case-insensitively) exists, merges its attributes: non-null incoming values
// replace stored ones, null incoming values leave them untouched. The stored
// name keeps its first-seen casing. created reports whether a row was inserted.
func (db *DB) UpsertStartup(ctx context.Context, s model.Startup) (uuid.UUID, bool, error) {
	if s.Name == "" {
		return uuid.Nil, false, ErrEmptyName
	}
	var (
		id      uuid.UUID
		created bool
	)
	err := db.retryWrite(ctx, func() error {
		// xmax is zero only on a freshly inserted tuple.
		return db.pool.QueryRow(ctx,
			`INSERT INTO startups (name, founding_date, city, industry, sub_vertical)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT ((lower(name))) DO UPDATE SET
			   founding_date = COALESCE(EXCLUDED.founding_date, startups.founding_date),
			   city          = COALESCE(EXCLUDED.city, startups.city),
			   industry      = COALESCE(EXCLUDED.industry, startups.industry),
			   sub_vertical  = COALESCE(EXCLUDED.sub_vertical, startups.sub_vertical),
			   updated_at    = now()
			 RETURNING id, (xmax = 0)`,
			s.Name, s.FoundingDate, s.City, s.Industry, s.SubVertical,
		).Scan(&id, &created)
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("storage: upsert startup: %w", err)
	}
	return id, created, nil
}

// UpsertFounder returns the id of the founder with exactly this name,
// inserting it if absent.
func (db *DB) UpsertFounder(ctx context.Context, name string) (uuid.UUID, bool, error) {
	id, created, err := db.upsertByName(ctx, founderQueries, name)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("storage: upsert founder: %w", err)
	}
	return id, created, nil
}

// UpsertInvestor returns the id of the investor with exactly this name,
// inserting it if absent.
func (db *DB) UpsertInvestor(ctx context.Context, name string) (uuid.UUID, bool, error) {
	id, created, err := db.upsertByName(ctx, investorQueries, name)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("storage: upsert investor: %w", err)
	}
	return id, created, nil
}

type nameQueries struct {
	insert string
	lookup string
}

var (
	founderQueries = nameQueries{
		insert: `INSERT INTO founders (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		lookup: `SELECT id FROM founders WHERE name = $1`,
	}
	investorQueries = nameQueries{
		insert: `INSERT INTO investors (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		lookup: `SELECT id FROM investors WHERE name = $1`,
	}
)

// upsertByName inserts name and, on a unique conflict, falls back to looking
// up the existing row. DO NOTHING returns no row on conflict.
func (db *DB) upsertByName(ctx context.Context, q nameQueries, name string) (uuid.UUID, bool, error) {
	if name == "" {
		return uuid.Nil, false, ErrEmptyName
	}
	var (
		id      uuid.UUID
		created bool
	)
	err := db.retryWrite(ctx, func() error {
		err := db.pool.QueryRow(ctx, q.insert, name).Scan(&id)
		if err == nil {
			created = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		created = false
		return db.pool.QueryRow(ctx, q.lookup, name).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, created, nil
}

// LinkFounder associates a founder with a startup. It reports whether the
// pair was new; an existing pair is left as is.
func (db *DB) LinkFounder(ctx context.Context, startupID, founderID uuid.UUID) (bool, error) {
	var linked bool
	err := db.retryWrite(ctx, func() error {
		tag, err := db.pool.Exec(ctx,
			`INSERT INTO startup_founders (startup_id, founder_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			startupID, founderID)
		if err != nil {
			return err
		}
		linked = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("storage: link founder: %w", err)
	}
	return linked, nil
}

// InsertFundingRound appends a funding round. Rounds are never merged.
func (db *DB) InsertFundingRound(ctx context.Context, r model.FundingRound) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO funding_rounds
		   (startup_id, investor_id, amount_usd, investment_stage, funding_date, source_file)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.StartupID, r.InvestorID, r.AmountUSD, r.InvestmentStage, r.FundingDate, r.SourceFile,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: insert funding round: %w", err)
	}
	return id, nil
}

// Counts returns the row count of every migrated table.
func (db *DB) Counts(ctx context.Context) (model.TableCounts, error) {
	var c model.TableCounts
	err := db.pool.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM startups),
		   (SELECT count(*) FROM founders),
		   (SELECT count(*) FROM investors),
		   (SELECT count(*) FROM startup_founders),
		   (SELECT count(*) FROM funding_rounds)`,
	).Scan(&c.Startups, &c.Founders, &c.Investors, &c.StartupFounders, &c.FundingRounds)
	if err != nil {
		return model.TableCounts{}, fmt.Errorf("storage: table counts: %w", err)
	}
	return c, nil
}
