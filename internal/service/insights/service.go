// Package insights answers the analyst questions exposed by the MCP tools.
//
// It resolves free-text company and investor names against the database,
// assembles profiles and market aggregates, and caches the JSON results.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/ventura/internal/cache"
	"github.com/ashita-ai/ventura/internal/model"
	"github.com/ashita-ai/ventura/internal/telemetry"
)

const (
	candidateLimit   = 10
	maxOtherMatches  = 5
	DefaultMarketTop = 10
	MaxMarketTop     = 50
	loadTimeout      = 30 * time.Second
)

// ErrNotFound is returned when a name resolves to nothing.
var ErrNotFound = errors.New("insights: not found")

// ErrInvalidInput is returned for arguments that can never match.
var ErrInvalidInput = errors.New("insights: invalid input")

// Store is the read side of storage.DB used by the service.
type Store interface {
	SearchStartups(ctx context.Context, q string, limit int) ([]model.NameRef, error)
	ListStartupNames(ctx context.Context) ([]model.NameRef, error)
	GetStartupProfile(ctx context.Context, id uuid.UUID) (model.StartupProfile, error)

	SearchInvestors(ctx context.Context, q string, limit int) ([]model.NameRef, error)
	ListInvestorNames(ctx context.Context) ([]model.NameRef, error)
	GetInvestorPortfolio(ctx context.Context, id uuid.UUID) (model.InvestorPortfolio, error)

	MarketSubVerticals(ctx context.Context, industry string, limit int) ([]model.SegmentStat, error)
	MarketCities(ctx context.Context, industry string, limit int) ([]model.SegmentStat, error)
	MarketTopStartups(ctx context.Context, industry string, limit int) ([]model.StartupFunding, error)
	MarketTopInvestors(ctx context.Context, industry string, limit int) ([]model.InvestorActivity, error)

	FundingTrends(ctx context.Context, f model.TrendFilter) ([]model.TrendBucket, error)
}

// Service is shared by every MCP tool handler.
type Service struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// New creates a Service. A nil cache disables caching.
func New(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	meter := telemetry.Meter("ventura/insights")
	hits, _ := meter.Int64Counter("ventura.insights.cache_hits",
		metric.WithDescription("Insight results served from cache"))
	misses, _ := meter.Int64Counter("ventura.insights.cache_misses",
		metric.WithDescription("Insight results computed from the database"))
	return &Service{
		store:       store,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
		cacheHits:   hits,
		cacheMisses: misses,
	}
}

// CompanyLookup resolves name to the best matching startup and returns its
// profile together with the names of other plausible matches.
func (s *Service) CompanyLookup(ctx context.Context, name string) (model.CompanyLookup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.CompanyLookup{}, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}
	return cached(ctx, s, "company:"+strings.ToLower(name), func(ctx context.Context) (model.CompanyLookup, error) {
		best, others, err := s.resolve(ctx, name, s.store.SearchStartups, s.store.ListStartupNames)
		if err != nil {
			return model.CompanyLookup{}, fmt.Errorf("insights: company %q: %w", name, err)
		}
		profile, err := s.store.GetStartupProfile(ctx, best.ID)
		if err != nil {
			return model.CompanyLookup{}, fmt.Errorf("insights: company %q: %w", name, err)
		}
		return model.CompanyLookup{Query: name, Profile: profile, OtherMatches: others}, nil
	})
}

// InvestorIntelligence resolves name to the best matching investor and
// returns its portfolio.
func (s *Service) InvestorIntelligence(ctx context.Context, name string) (model.InvestorLookup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.InvestorLookup{}, fmt.Errorf("%w: investor name is required", ErrInvalidInput)
	}
	return cached(ctx, s, "investor:"+strings.ToLower(name), func(ctx context.Context) (model.InvestorLookup, error) {
		best, others, err := s.resolve(ctx, name, s.store.SearchInvestors, s.store.ListInvestorNames)
		if err != nil {
			return model.InvestorLookup{}, fmt.Errorf("insights: investor %q: %w", name, err)
		}
		portfolio, err := s.store.GetInvestorPortfolio(ctx, best.ID)
		if err != nil {
			return model.InvestorLookup{}, fmt.Errorf("insights: investor %q: %w", name, err)
		}
		return model.InvestorLookup{Query: name, Portfolio: portfolio, OtherMatches: others}, nil
	})
}

// MarketMap breaks down the industries matching industry. limit bounds each
// list; 0 means DefaultMarketTop.
func (s *Service) MarketMap(ctx context.Context, industry string, limit int) (model.MarketMap, error) {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return model.MarketMap{}, fmt.Errorf("%w: industry is required", ErrInvalidInput)
	}
	limit = clampLimit(limit)

	key := fmt.Sprintf("market:%s:%d", strings.ToLower(industry), limit)
	return cached(ctx, s, key, func(ctx context.Context) (model.MarketMap, error) {
		m := model.MarketMap{Industry: industry}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			m.SubVerticals, err = s.store.MarketSubVerticals(gctx, industry, limit)
			return err
		})
		g.Go(func() (err error) {
			m.Cities, err = s.store.MarketCities(gctx, industry, limit)
			return err
		})
		g.Go(func() (err error) {
			m.TopStartups, err = s.store.MarketTopStartups(gctx, industry, limit)
			return err
		})
		g.Go(func() (err error) {
			m.TopInvestors, err = s.store.MarketTopInvestors(gctx, industry, limit)
			return err
		})
		if err := g.Wait(); err != nil {
			return model.MarketMap{}, fmt.Errorf("insights: market map %q: %w", industry, err)
		}
		if len(m.SubVerticals) == 0 && len(m.TopStartups) == 0 {
			return model.MarketMap{}, fmt.Errorf("insights: market map %q: %w", industry, ErrNotFound)
		}
		return m, nil
	})
}

// FundingAnalysis returns monthly deal activity matching f with totals.
// An empty result is not an error.
func (s *Service) FundingAnalysis(ctx context.Context, f model.TrendFilter) (model.FundingAnalysis, error) {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return model.FundingAnalysis{}, fmt.Errorf("%w: start date is after end date", ErrInvalidInput)
	}
	f.Industry = strings.TrimSpace(f.Industry)
	f.City = strings.TrimSpace(f.City)
	f.Stage = strings.TrimSpace(f.Stage)

	key, err := json.Marshal(f)
	if err != nil {
		return model.FundingAnalysis{}, fmt.Errorf("insights: funding analysis key: %w", err)
	}
	return cached(ctx, s, "trends:"+strings.ToLower(string(key)), func(ctx context.Context) (model.FundingAnalysis, error) {
		buckets, err := s.store.FundingTrends(ctx, f)
		if err != nil {
			return model.FundingAnalysis{}, fmt.Errorf("insights: funding analysis: %w", err)
		}
		a := model.FundingAnalysis{Filter: f, Buckets: buckets}
		if a.Buckets == nil {
			a.Buckets = []model.TrendBucket{}
		}
		for _, b := range a.Buckets {
			a.TotalDeals += b.Deals
			a.DisclosedUSD += b.DisclosedUSD
		}
		return a, nil
	})
}

// resolve picks the best match for q. Substring candidates are tried first;
// when there are none, every name is ranked by fuzzy subsequence match.
// An exact case-insensitive match always wins.
func (s *Service) resolve(
	ctx context.Context,
	q string,
	search func(context.Context, string, int) ([]model.NameRef, error),
	list func(context.Context) ([]model.NameRef, error),
) (model.NameRef, []string, error) {
	refs, err := search(ctx, q, candidateLimit)
	if err != nil {
		return model.NameRef{}, nil, err
	}
	if len(refs) == 0 {
		if refs, err = list(ctx); err != nil {
			return model.NameRef{}, nil, err
		}
	}

	ranked := rankNames(q, refs)
	if len(ranked) == 0 {
		return model.NameRef{}, nil, ErrNotFound
	}
	others := make([]string, 0, maxOtherMatches)
	for _, r := range ranked[1:] {
		if len(others) == maxOtherMatches {
			break
		}
		others = append(others, r.Name)
	}
	s.logger.Debug("insights: resolved name", "query", q, "match", ranked[0].Name, "candidates", len(ranked))
	return ranked[0], others, nil
}

// rankNames orders refs by fuzzy distance to q, dropping non-matches.
func rankNames(q string, refs []model.NameRef) []model.NameRef {
	words := make([]string, len(refs))
	for i, r := range refs {
		words[i] = r.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(q, words)
	sort.Stable(ranks)

	out := make([]model.NameRef, 0, len(ranks)+1)
	for _, rank := range ranks {
		if strings.EqualFold(rank.Target, q) {
			out = append([]model.NameRef{refs[rank.OriginalIndex]}, out...)
			continue
		}
		out = append(out, refs[rank.OriginalIndex])
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMarketTop
	}
	return min(limit, MaxMarketTop)
}

// cached serves key from the cache or computes it with load. Concurrent
// misses for the same key share one load. The load runs detached from the
// caller's cancellation because its result is shared with other waiters.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if b, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("insights: cache get failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			s.cacheHits.Add(ctx, 1)
			return v, nil
		}
		s.logger.Warn("insights: discarding undecodable cache entry", "key", key)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.cacheMisses.Add(ctx, 1)
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		v, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(v); err != nil {
			s.logger.Warn("insights: encode cache entry", "key", key, "error", err)
		} else if err := s.cache.Set(lctx, key, b, s.ttl); err != nil {
			s.logger.Warn("insights: cache set failed", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
