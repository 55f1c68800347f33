package mcp

import (
	"cmp"
	"slices"
	"time"

	"github.com/ashita-ai/ventura/internal/model"
)

const (
	maxCompactDeals     = 25
	maxCompactCompanies = 50
	maxCompactContent   = 500
)

// compactDeal is one reported round with every participating investor.
// Storage keeps one funding round per investor; agents reason about deals.
type compactDeal struct {
	Date       *time.Time `json:"date,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	AmountUSD  *float64   `json:"amount_usd,omitempty"`
	Investors  []string   `json:"investors"`
	SourceFile string     `json:"source_file"`
}

type dealKey struct {
	date   time.Time
	stage  string
	amount float64
	hasAmt bool
	source string
}

// groupDeals folds rounds into deals, newest first. Rounds are assumed to
// belong to one startup.
func groupDeals(rounds []model.RoundDetail) []compactDeal {
	index := make(map[dealKey]int)
	var deals []compactDeal
	for _, r := range rounds {
		k := dealKey{stage: r.InvestmentStage, source: r.SourceFile}
		if r.FundingDate != nil {
			k.date = *r.FundingDate
		}
		if r.AmountUSD != nil {
			k.amount, k.hasAmt = *r.AmountUSD, true
		}
		if i, ok := index[k]; ok {
			deals[i].Investors = append(deals[i].Investors, r.InvestorName)
			continue
		}
		index[k] = len(deals)
		deals = append(deals, compactDeal{
			Date:       r.FundingDate,
			Stage:      r.InvestmentStage,
			AmountUSD:  r.AmountUSD,
			Investors:  []string{r.InvestorName},
			SourceFile: r.SourceFile,
		})
	}
	slices.SortStableFunc(deals, func(a, b compactDeal) int {
		switch {
		case a.Date == nil && b.Date == nil:
			return cmp.Compare(a.SourceFile, b.SourceFile)
		case a.Date == nil:
			return 1
		case b.Date == nil:
			return -1
		}
		return b.Date.Compare(*a.Date)
	})
	return deals
}

// compactProfile returns a minimal representation of a startup profile for
// MCP responses: bookkeeping timestamps and ids are dropped and rounds are
// folded into at most maxCompactDeals deals.
func compactProfile(p model.StartupProfile) map[string]any {
	m := map[string]any{
		"name": p.Startup.Name,
	}
	if p.Startup.City != nil {
		m["city"] = *p.Startup.City
	}
	if p.Startup.Industry != nil {
		m["industry"] = *p.Startup.Industry
	}
	if p.Startup.SubVertical != nil {
		m["sub_vertical"] = *p.Startup.SubVertical
	}
	if p.Startup.FoundingDate != nil {
		m["founding_date"] = p.Startup.FoundingDate.Format(time.DateOnly)
	}

	founders := make([]string, len(p.Founders))
	for i, f := range p.Founders {
		founders[i] = f.Name
	}
	m["founders"] = founders

	deals := groupDeals(p.Rounds)
	var disclosed float64
	for _, d := range deals {
		if d.AmountUSD != nil {
			disclosed += *d.AmountUSD
		}
	}
	m["total_deals"] = len(deals)
	m["disclosed_usd"] = disclosed
	if len(deals) > maxCompactDeals {
		m["deals_truncated"] = len(deals) - maxCompactDeals
		deals = deals[:maxCompactDeals]
	}
	if deals == nil {
		deals = []compactDeal{}
	}
	m["deals"] = deals
	return m
}

// compactPortfolio keeps the investor's largest positions first.
func compactPortfolio(p model.InvestorPortfolio) map[string]any {
	companies := slices.Clone(p.Companies)
	slices.SortStableFunc(companies, func(a, b model.PortfolioCompany) int {
		if c := cmp.Compare(b.DisclosedUSD, a.DisclosedUSD); c != 0 {
			return c
		}
		return cmp.Compare(b.Rounds, a.Rounds)
	})

	m := map[string]any{
		"name":          p.Investor.Name,
		"portfolio":     len(companies),
		"total_rounds":  p.TotalRounds,
		"disclosed_usd": p.DisclosedUSD,
	}
	if len(companies) > maxCompactCompanies {
		m["companies_truncated"] = len(companies) - maxCompactCompanies
		companies = companies[:maxCompactCompanies]
	}
	if companies == nil {
		companies = []model.PortfolioCompany{}
	}
	m["companies"] = companies
	return m
}

// truncate shortens s to maxLen runes, appending "..." when cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
