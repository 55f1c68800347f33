package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/ventura/internal/ingest"
	"github.com/ashita-ai/ventura/internal/model"
	"github.com/ashita-ai/ventura/internal/storage"
	"github.com/ashita-ai/ventura/internal/testutil"
	"github.com/ashita-ai/ventura/migrations"
)

var _ ingest.Store = (*storage.DB)(nil)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	db, err := tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}
	testDB = db

	code := m.Run()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func ptr[T any](v T) *T { return &v }

// unique suffixes names so tests sharing the database do not collide.
func unique(name string) string {
	return name + " " + uuid.NewString()[:8]
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}

func TestUpsertStartupReturnsSameID(t *testing.T) {
	ctx := context.Background()
	name := unique("Acme")

	id1, created1, err := testDB.UpsertStartup(ctx, model.Startup{Name: name})
	require.NoError(t, err)
	assert.True(t, created1)

	id2, created2, err := testDB.UpsertStartup(ctx, model.Startup{Name: name})
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	refs, err := testDB.SearchStartups(ctx, name, 10)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestUpsertStartupCoalescesAttributes(t *testing.T) {
	ctx := context.Background()
	name := unique("Coalesce Co")
	founded := time.Date(2017, time.March, 1, 0, 0, 0, 0, time.UTC)

	id, _, err := testDB.UpsertStartup(ctx, model.Startup{
		Name: name, City: ptr("SF"), Industry: ptr("Robotics"), FoundingDate: &founded,
	})
	require.NoError(t, err)

	// A null city must not clobber the stored value.
	_, _, err = testDB.UpsertStartup(ctx, model.Startup{Name: name, SubVertical: ptr("Warehouse")})
	require.NoError(t, err)

	s, err := testDB.GetStartup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s.City)
	assert.Equal(t, "SF", *s.City)
	require.NotNil(t, s.SubVertical)
	assert.Equal(t, "Warehouse", *s.SubVertical, "null attribute is filled in")
	require.NotNil(t, s.FoundingDate)
	assert.True(t, founded.Equal(*s.FoundingDate))

	// A non-null city overwrites.
	_, _, err = testDB.UpsertStartup(ctx, model.Startup{Name: name, City: ptr("Oakland")})
	require.NoError(t, err)

	s, err = testDB.GetStartup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s.City)
	assert.Equal(t, "Oakland", *s.City)
	require.NotNil(t, s.Industry)
	assert.Equal(t, "Robotics", *s.Industry)
	assert.False(t, s.UpdatedAt.Before(s.CreatedAt))
}

func TestUpsertStartupMatchesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	name := unique("MixedCase")

	id1, created, err := testDB.UpsertStartup(ctx, model.Startup{Name: name})
	require.NoError(t, err)
	require.True(t, created)

	id2, created, err := testDB.UpsertStartup(ctx, model.Startup{Name: strings.ToUpper(name)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	s, err := testDB.GetStartup(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, name, s.Name, "first-seen casing is kept")
}

func TestUpsertRejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	_, _, err := testDB.UpsertStartup(ctx, model.Startup{})
	assert.ErrorIs(t, err, storage.ErrEmptyName)
	_, _, err = testDB.UpsertFounder(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyName)
	_, _, err = testDB.UpsertInvestor(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyName)
}

func TestUpsertFounderAndInvestorAreIdempotent(t *testing.T) {
	ctx := context.Background()

	founder := unique("Asha Rao")
	f1, created, err := testDB.UpsertFounder(ctx, founder)
	require.NoError(t, err)
	assert.True(t, created)
	f2, created, err := testDB.UpsertFounder(ctx, founder)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f1, f2)

	investor := unique("Accel")
	i1, created, err := testDB.UpsertInvestor(ctx, investor)
	require.NoError(t, err)
	assert.True(t, created)
	i2, created, err := testDB.UpsertInvestor(ctx, investor)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, i1, i2)

	// Founder and investor identity is the exact name.
	i3, created, err := testDB.UpsertInvestor(ctx, strings.ToLower(investor))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, i1, i3)
}

func TestLinkFounderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sid, _, err := testDB.UpsertStartup(ctx, model.Startup{Name: unique("Linked")})
	require.NoError(t, err)
	fid, _, err := testDB.UpsertFounder(ctx, unique("Dev Patel"))
	require.NoError(t, err)

	linked, err := testDB.LinkFounder(ctx, sid, fid)
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = testDB.LinkFounder(ctx, sid, fid)
	require.NoError(t, err)
	assert.False(t, linked)

	profile, err := testDB.GetStartupProfile(ctx, sid)
	require.NoError(t, err)
	require.Len(t, profile.Founders, 1)
	assert.Equal(t, fid, profile.Founders[0].ID)
}

func TestInsertFundingRoundAppends(t *testing.T) {
	ctx := context.Background()
	sid, _, err := testDB.UpsertStartup(ctx, model.Startup{Name: unique("Appender")})
	require.NoError(t, err)
	iid, _, err := testDB.UpsertInvestor(ctx, unique("Sequoia"))
	require.NoError(t, err)

	jan := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	round := model.FundingRound{
		StartupID: sid, InvestorID: iid, AmountUSD: ptr(1500000.0),
		InvestmentStage: "Seed", FundingDate: &jan, SourceFile: "Jan_2020.csv",
	}
	id1, err := testDB.InsertFundingRound(ctx, round)
	require.NoError(t, err)
	id2, err := testDB.InsertFundingRound(ctx, round)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	round.AmountUSD = nil
	_, err = testDB.InsertFundingRound(ctx, round)
	require.NoError(t, err)

	profile, err := testDB.GetStartupProfile(ctx, sid)
	require.NoError(t, err)
	require.Len(t, profile.Rounds, 3)
	var undisclosed int
	for _, r := range profile.Rounds {
		if r.AmountUSD == nil {
			undisclosed++
			continue
		}
		assert.InDelta(t, 1500000, *r.AmountUSD, 0.001)
	}
	assert.Equal(t, 1, undisclosed, "undisclosed amount stays null")
}

func TestGetMissingEntitiesReturnNotFound(t *testing.T) {
	ctx := context.Background()
	_, err := testDB.GetStartupProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = testDB.GetInvestorPortfolio(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func writeCSV(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "Startup Name,Founding Date,City,Industry/Vertical,Sub-Vertical,Founders,Investors,Amount(in USD),Investment Stage\n" +
		strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestPipelineRerunKeepsEntitiesAndAppendsRounds(t *testing.T) {
	ctx := context.Background()
	startup, investor := unique("Rerun"), unique("Rerun Capital")
	dir := filepath.Join(t.TempDir(), "2020")
	writeCSV(t, dir, "Jan_2020.csv", startup+",,Delhi,Fintech,,Asha Rerun,"+investor+",100,Seed")
	writeCSV(t, dir, "Feb_2020.csv", startup+",,Delhi,Fintech,,,"+investor+",200,Series A")

	p := ingest.NewPipeline(testDB, testutil.TestLogger(), ingest.Options{})

	before, err := testDB.Counts(ctx)
	require.NoError(t, err)

	first, err := p.Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Empty(t, first.Errors)
	assert.Equal(t, 1, first.Stats.StartupsInserted)
	assert.Equal(t, 2, first.Stats.FundingRoundsInserted)

	afterFirst, err := testDB.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Startups+1, afterFirst.Startups)
	assert.Equal(t, before.FundingRounds+2, afterFirst.FundingRounds)

	second, err := p.Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stats.StartupsInserted)
	assert.Equal(t, 2, second.Stats.StartupsUpdated)
	assert.Equal(t, 0, second.Stats.InvestorsInserted)
	assert.Equal(t, 0, second.Stats.FounderLinks)

	afterSecond, err := testDB.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, afterFirst.Startups, afterSecond.Startups)
	assert.Equal(t, afterFirst.Founders, afterSecond.Founders)
	assert.Equal(t, afterFirst.Investors, afterSecond.Investors)
	assert.Equal(t, afterFirst.StartupFounders, afterSecond.StartupFounders)
	assert.Equal(t, afterFirst.FundingRounds+2, afterSecond.FundingRounds, "funding rounds are append-only")
}

func TestDryRunLeavesTablesUntouched(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "2021")
	writeCSV(t, dir, "Mar_2021.csv",
		unique("DryRun")+",2020-01-01,Pune,SaaS,HR,Someone New,"+unique("Dry Capital")+",\"$5,000,000\",Series B")

	before, err := testDB.Counts(ctx)
	require.NoError(t, err)

	report, err := ingest.NewPipeline(testDB, testutil.TestLogger(), ingest.Options{DryRun: true}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.StartupsInserted)
	assert.Equal(t, 1, report.Stats.FundingRoundsInserted)

	after, err := testDB.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestQueryLayer(t *testing.T) {
	ctx := context.Background()
	industry := unique("Agritech")
	alpha, beta := unique("Alpha Farms"), unique("Beta Soil")
	lead, follow := unique("Omnivore"), unique("Ankur")

	dir := filepath.Join(t.TempDir(), "2020")
	writeCSV(t, dir, "Jan_2020.csv",
		alpha+",2016-01-01,Bengaluru,"+industry+",Farm SaaS,Kiran Alpha,\""+lead+", "+follow+"\",\"$4,000,000\",Series A",
		beta+",,Pune,"+industry+",Soil Testing,,"+lead+",Undisclosed,Seed",
	)
	writeCSV(t, dir, "Mar_2020.csv",
		alpha+",,Bengaluru,"+industry+",Farm SaaS,,"+lead+",\"$10,000,000\",Series B",
	)
	report, err := ingest.NewPipeline(testDB, testutil.TestLogger(), ingest.Options{}).Run(ctx, []string{dir})
	require.NoError(t, err)
	require.Empty(t, report.Errors)

	t.Run("search and profile", func(t *testing.T) {
		refs, err := testDB.SearchStartups(ctx, strings.ToLower(alpha[:12]), 5)
		require.NoError(t, err)
		require.NotEmpty(t, refs)

		var alphaID uuid.UUID
		for _, r := range refs {
			if r.Name == alpha {
				alphaID = r.ID
			}
		}
		require.NotEqual(t, uuid.Nil, alphaID)

		profile, err := testDB.GetStartupProfile(ctx, alphaID)
		require.NoError(t, err)
		assert.Equal(t, alpha, profile.Startup.Name)
		require.Len(t, profile.Founders, 1)
		assert.Equal(t, "Kiran Alpha", profile.Founders[0].Name)
		require.Len(t, profile.Rounds, 3)
		assert.Equal(t, "Mar_2020.csv", profile.Rounds[0].SourceFile, "newest round first")
		assert.Equal(t, lead, profile.Rounds[0].InvestorName)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		refs, err := testDB.SearchStartups(ctx, "%", 5)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("investor portfolio", func(t *testing.T) {
		refs, err := testDB.SearchInvestors(ctx, lead, 5)
		require.NoError(t, err)
		require.Len(t, refs, 1)

		p, err := testDB.GetInvestorPortfolio(ctx, refs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, lead, p.Investor.Name)
		require.Len(t, p.Companies, 2)
		assert.Equal(t, 3, p.TotalRounds)
		assert.InDelta(t, 14000000, p.DisclosedUSD, 0.01)

		byName := map[string]model.PortfolioCompany{}
		for _, c := range p.Companies {
			byName[c.Name] = c
		}
		assert.ElementsMatch(t, []string{"Series A", "Series B"}, byName[alpha].Stages)
		assert.Equal(t, 2, byName[alpha].Rounds)
		assert.Equal(t, []string{"Seed"}, byName[beta].Stages)
	})

	t.Run("market map", func(t *testing.T) {
		subs, err := testDB.MarketSubVerticals(ctx, industry, 10)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, "Farm SaaS", subs[0].Name)
		assert.Equal(t, 2, subs[0].Deals, "two investors in one row are one deal")
		assert.InDelta(t, 14000000, subs[0].DisclosedUSD, 0.01)

		cities, err := testDB.MarketCities(ctx, industry, 10)
		require.NoError(t, err)
		require.Len(t, cities, 2)

		top, err := testDB.MarketTopStartups(ctx, industry, 10)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, alpha, top[0].Name)
		assert.InDelta(t, 14000000, top[0].DisclosedUSD, 0.01)

		investors, err := testDB.MarketTopInvestors(ctx, industry, 10)
		require.NoError(t, err)
		require.Len(t, investors, 2)
		assert.Equal(t, lead, investors[0].Name)
		assert.Equal(t, 3, investors[0].Deals)
		assert.Equal(t, 2, investors[0].Startups)
	})

	t.Run("funding trends", func(t *testing.T) {
		buckets, err := testDB.FundingTrends(ctx, model.TrendFilter{Industry: industry})
		require.NoError(t, err)
		require.Len(t, buckets, 2)

		jan := buckets[0]
		assert.True(t, jan.Month.Equal(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 2, jan.Deals)
		assert.Equal(t, 2, jan.Startups)
		assert.Equal(t, 1, jan.DisclosedDeals)
		assert.InDelta(t, 4000000, jan.DisclosedUSD, 0.01)

		from := time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC)
		buckets, err = testDB.FundingTrends(ctx, model.TrendFilter{Industry: industry, From: &from, Stage: "series b"})
		require.NoError(t, err)
		require.Len(t, buckets, 1)
		assert.Equal(t, 1, buckets[0].Deals)
	})
}
