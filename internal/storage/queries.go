package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/ventura/internal/model"
)

// A deal is one CSV row: the migration writes one funding_rounds row per
// listed investor, so amounts are summed over distinct deals rather than
// over rounds.
const dealColumns = `fr.startup_id, fr.source_file, fr.funding_date, fr.investment_stage, fr.amount_usd`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching s anywhere. An empty s
// yields an empty pattern, which the queries treat as "any".
func containsPattern(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

// SearchStartups returns startups whose name contains q (case-insensitive),
// shortest names first.
func (db *DB) SearchStartups(ctx context.Context, q string, limit int) ([]model.NameRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name FROM startups
		 WHERE name ILIKE $1
		 ORDER BY length(name), name
		 LIMIT $2`, containsPattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search startups: %w", err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.NameRef])
	if err != nil {
		return nil, fmt.Errorf("storage: search startups: %w", err)
	}
	return refs, nil
}

// ListStartupNames returns every startup id and name.
func (db *DB) ListStartupNames(ctx context.Context) ([]model.NameRef, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name FROM startups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: list startups: %w", err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.NameRef])
	if err != nil {
		return nil, fmt.Errorf("storage: list startups: %w", err)
	}
	return refs, nil
}

// GetStartup returns one startup by id.
func (db *DB) GetStartup(ctx context.Context, id uuid.UUID) (model.Startup, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, founding_date, city, industry, sub_vertical, created_at, updated_at
		 FROM startups WHERE id = $1`, id)
	if err != nil {
		return model.Startup{}, fmt.Errorf("storage: get startup: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[model.Startup])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Startup{}, fmt.Errorf("storage: startup %s: %w", id, ErrNotFound)
		}
		return model.Startup{}, fmt.Errorf("storage: get startup: %w", err)
	}
	return s, nil
}

// GetStartupProfile returns a startup with its founders and every funding
// round it appears in, newest first.
func (db *DB) GetStartupProfile(ctx context.Context, id uuid.UUID) (model.StartupProfile, error) {
	s, err := db.GetStartup(ctx, id)
	if err != nil {
		return model.StartupProfile{}, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT f.id, f.name, f.created_at
		 FROM founders f
		 JOIN startup_founders sf ON sf.founder_id = f.id
		 WHERE sf.startup_id = $1
		 ORDER BY f.name`, id)
	if err != nil {
		return model.StartupProfile{}, fmt.Errorf("storage: startup founders: %w", err)
	}
	founders, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Founder])
	if err != nil {
		return model.StartupProfile{}, fmt.Errorf("storage: startup founders: %w", err)
	}

	rows, err = db.pool.Query(ctx,
		`SELECT fr.startup_id, s.name, fr.investor_id, i.name, fr.amount_usd::float8,
		        fr.investment_stage, fr.funding_date, fr.source_file
		 FROM funding_rounds fr
		 JOIN startups s ON s.id = fr.startup_id
		 JOIN investors i ON i.id = fr.investor_id
		 WHERE fr.startup_id = $1
		 ORDER BY fr.funding_date DESC NULLS LAST, fr.source_file, i.name`, id)
	if err != nil {
		return model.StartupProfile{}, fmt.Errorf("storage: startup rounds: %w", err)
	}
	rounds, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.RoundDetail])
	if err != nil {
		return model.StartupProfile{}, fmt.Errorf("storage: startup rounds: %w", err)
	}

	return model.StartupProfile{Startup: s, Founders: founders, Rounds: rounds}, nil
}

// SearchInvestors returns investors whose name contains q (case-insensitive).
func (db *DB) SearchInvestors(ctx context.Context, q string, limit int) ([]model.NameRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name FROM investors
		 WHERE name ILIKE $1
		 ORDER BY length(name), name
		 LIMIT $2`, containsPattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search investors: %w", err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.NameRef])
	if err != nil {
		return nil, fmt.Errorf("storage: search investors: %w", err)
	}
	return refs, nil
}

// ListInvestorNames returns every investor id and name.
func (db *DB) ListInvestorNames(ctx context.Context) ([]model.NameRef, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name FROM investors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: list investors: %w", err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.NameRef])
	if err != nil {
		return nil, fmt.Errorf("storage: list investors: %w", err)
	}
	return refs, nil
}

// GetInvestorPortfolio returns an investor and the startups it backed, most
// recent first. DisclosedUSD sums the disclosed size of the rounds the
// investor took part in.
func (db *DB) GetInvestorPortfolio(ctx context.Context, id uuid.UUID) (model.InvestorPortfolio, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, created_at FROM investors WHERE id = $1`, id)
	if err != nil {
		return model.InvestorPortfolio{}, fmt.Errorf("storage: get investor: %w", err)
	}
	inv, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[model.Investor])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.InvestorPortfolio{}, fmt.Errorf("storage: investor %s: %w", id, ErrNotFound)
		}
		return model.InvestorPortfolio{}, fmt.Errorf("storage: get investor: %w", err)
	}

	rows, err = db.pool.Query(ctx,
		`SELECT s.id, s.name, s.industry, s.city,
		        count(*),
		        array_remove(array_agg(DISTINCT NULLIF(fr.investment_stage, '')), NULL),
		        COALESCE(sum(fr.amount_usd), 0)::float8,
		        max(fr.funding_date)
		 FROM funding_rounds fr
		 JOIN startups s ON s.id = fr.startup_id
		 WHERE fr.investor_id = $1
		 GROUP BY s.id, s.name, s.industry, s.city
		 ORDER BY max(fr.funding_date) DESC NULLS LAST, s.name`, id)
	if err != nil {
		return model.InvestorPortfolio{}, fmt.Errorf("storage: investor portfolio: %w", err)
	}
	companies, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.PortfolioCompany])
	if err != nil {
		return model.InvestorPortfolio{}, fmt.Errorf("storage: investor portfolio: %w", err)
	}

	p := model.InvestorPortfolio{Investor: inv, Companies: companies}
	for _, c := range companies {
		p.TotalRounds += c.Rounds
		p.DisclosedUSD += c.DisclosedUSD
	}
	return p, nil
}

// MarketSubVerticals breaks an industry down by sub-vertical, ordered by
// deal count. Startups without a sub-vertical are grouped as "Unspecified".
func (db *DB) MarketSubVerticals(ctx context.Context, industry string, limit int) ([]model.SegmentStat, error) {
	return db.marketSegments(ctx, "s.sub_vertical", industry, limit)
}

// MarketCities breaks an industry down by city, ordered by deal count.
func (db *DB) MarketCities(ctx context.Context, industry string, limit int) ([]model.SegmentStat, error) {
	return db.marketSegments(ctx, "s.city", industry, limit)
}

// marketSegments groups by dimension, which must be a trusted column
// expression.
func (db *DB) marketSegments(ctx context.Context, dimension, industry string, limit int) ([]model.SegmentStat, error) {
	query := fmt.Sprintf(
		`WITH deals AS (
		   SELECT DISTINCT %[1]s
		   FROM funding_rounds fr
		   JOIN startups s ON s.id = fr.startup_id
		   WHERE s.industry ILIKE $1
		 )
		 SELECT COALESCE(NULLIF(%[2]s, ''), 'Unspecified'),
		        count(DISTINCT s.id),
		        count(d.startup_id),
		        COALESCE(sum(d.amount_usd), 0)::float8
		 FROM startups s
		 LEFT JOIN deals d ON d.startup_id = s.id
		 WHERE s.industry ILIKE $1
		 GROUP BY 1
		 ORDER BY 3 DESC, 2 DESC, 1
		 LIMIT $2`, dealColumns, dimension)

	rows, err := db.pool.Query(ctx, query, containsPattern(industry), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: market segments: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.SegmentStat])
	if err != nil {
		return nil, fmt.Errorf("storage: market segments: %w", err)
	}
	return stats, nil
}

// MarketTopStartups ranks an industry's startups by disclosed capital.
func (db *DB) MarketTopStartups(ctx context.Context, industry string, limit int) ([]model.StartupFunding, error) {
	rows, err := db.pool.Query(ctx,
		`WITH deals AS (
		   SELECT DISTINCT `+dealColumns+`
		   FROM funding_rounds fr
		   JOIN startups s ON s.id = fr.startup_id
		   WHERE s.industry ILIKE $1
		 )
		 SELECT s.name, s.city, s.sub_vertical,
		        count(*),
		        COALESCE(sum(d.amount_usd), 0)::float8 AS disclosed
		 FROM deals d
		 JOIN startups s ON s.id = d.startup_id
		 GROUP BY s.id, s.name, s.city, s.sub_vertical
		 ORDER BY disclosed DESC, count(*) DESC, s.name
		 LIMIT $2`, containsPattern(industry), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: market top startups: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.StartupFunding])
	if err != nil {
		return nil, fmt.Errorf("storage: market top startups: %w", err)
	}
	return out, nil
}

// MarketTopInvestors ranks investors by the number of deals they joined in
// an industry.
func (db *DB) MarketTopInvestors(ctx context.Context, industry string, limit int) ([]model.InvestorActivity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.name, count(*), count(DISTINCT fr.startup_id)
		 FROM funding_rounds fr
		 JOIN investors i ON i.id = fr.investor_id
		 JOIN startups s ON s.id = fr.startup_id
		 WHERE s.industry ILIKE $1
		 GROUP BY i.id, i.name
		 ORDER BY 2 DESC, 3 DESC, i.name
		 LIMIT $2`, containsPattern(industry), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: market top investors: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.InvestorActivity])
	if err != nil {
		return nil, fmt.Errorf("storage: market top investors: %w", err)
	}
	return out, nil
}

// FundingTrends returns monthly deal activity matching f. Rounds without a
// funding date are excluded.
func (db *DB) FundingTrends(ctx context.Context, f model.TrendFilter) ([]model.TrendBucket, error) {
	rows, err := db.pool.Query(ctx,
		`WITH deals AS (
		   SELECT DISTINCT `+dealColumns+`
		   FROM funding_rounds fr
		   JOIN startups s ON s.id = fr.startup_id
		   WHERE fr.funding_date IS NOT NULL
		     AND ($1::date IS NULL OR fr.funding_date >= $1::date)
		     AND ($2::date IS NULL OR fr.funding_date <= $2::date)
		     AND ($3::text = '' OR s.industry ILIKE $3::text)
		     AND ($4::text = '' OR s.city ILIKE $4::text)
		     AND ($5::text = '' OR fr.investment_stage ILIKE $5::text)
		 )
		 SELECT date_trunc('month', funding_date)::date,
		        count(*),
		        count(DISTINCT startup_id),
		        count(amount_usd),
		        COALESCE(sum(amount_usd), 0)::float8
		 FROM deals
		 GROUP BY 1
		 ORDER BY 1`,
		f.From, f.To, containsPattern(f.Industry), containsPattern(f.City), containsPattern(f.Stage))
	if err != nil {
		return nil, fmt.Errorf("storage: funding trends: %w", err)
	}
	buckets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.TrendBucket])
	if err != nil {
		return nil, fmt.Errorf("storage: funding trends: %w", err)
	}
	return buckets, nil
}
