package model

import (
	"time"

	"github.com/google/uuid"
)

// NameRef is a lightweight (id, name) pair used for fuzzy name resolution.
type NameRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RoundDetail is a funding round joined with the names on both sides.
type RoundDetail struct {
	StartupID       uuid.UUID  `json:"startup_id"`
	StartupName     string     `json:"startup_name"`
	InvestorID      uuid.UUID  `json:"investor_id"`
	InvestorName    string     `json:"investor_name"`
	AmountUSD       *float64   `json:"amount_usd,omitempty"`
	InvestmentStage string     `json:"investment_stage"`
	FundingDate     *time.Time `json:"funding_date,omitempty"`
	SourceFile      string     `json:"source_file"`
}

// StartupProfile is everything known about one startup.
type StartupProfile struct {
	Startup  Startup       `json:"startup"`
	Founders []Founder     `json:"founders"`
	Rounds   []RoundDetail `json:"rounds"`
}

// CompanyLookup is the result of resolving a free-text company name.
type CompanyLookup struct {
	Query        string         `json:"query"`
	Profile      StartupProfile `json:"profile"`
	OtherMatches []string       `json:"other_matches,omitempty"`
}

// PortfolioCompany aggregates an investor's rounds in a single startup.
type PortfolioCompany struct {
	StartupID    uuid.UUID  `json:"startup_id"`
	Name         string     `json:"name"`
	Industry     *string    `json:"industry,omitempty"`
	City         *string    `json:"city,omitempty"`
	Rounds       int        `json:"rounds"`
	Stages       []string   `json:"stages"`
	DisclosedUSD float64    `json:"disclosed_usd"`
	LatestDate   *time.Time `json:"latest_date,omitempty"`
}

// InvestorPortfolio is everything known about one investor.
type InvestorPortfolio struct {
	Investor     Investor           `json:"investor"`
	Companies    []PortfolioCompany `json:"companies"`
	TotalRounds  int                `json:"total_rounds"`
	DisclosedUSD float64            `json:"disclosed_usd"`
}

// InvestorLookup is the result of resolving a free-text investor name.
type InvestorLookup struct {
	Query        string            `json:"query"`
	Portfolio    InvestorPortfolio `json:"portfolio"`
	OtherMatches []string          `json:"other_matches,omitempty"`
}

// SegmentStat is a count/amount breakdown for one value of a dimension
// (sub-vertical, city, ...).
type SegmentStat struct {
	Name         string  `json:"name"`
	Startups     int     `json:"startups"`
	Deals        int     `json:"deals"`
	DisclosedUSD float64 `json:"disclosed_usd"`
}

// StartupFunding ranks a startup by disclosed capital raised.
type StartupFunding struct {
	Name         string  `json:"name"`
	City         *string `json:"city,omitempty"`
	SubVertical  *string `json:"sub_vertical,omitempty"`
	Deals        int     `json:"deals"`
	DisclosedUSD float64 `json:"disclosed_usd"`
}

// InvestorActivity ranks an investor by deal count within a market.
type InvestorActivity struct {
	Name     string `json:"name"`
	Deals    int    `json:"deals"`
	Startups int    `json:"startups"`
}

// MarketMap is an analyst-style breakdown of one industry.
type MarketMap struct {
	Industry     string             `json:"industry"`
	SubVerticals []SegmentStat      `json:"sub_verticals"`
	Cities       []SegmentStat      `json:"cities"`
	TopStartups  []StartupFunding   `json:"top_startups"`
	TopInvestors []InvestorActivity `json:"top_investors"`
}

// TrendFilter narrows a funding trend query. Zero values mean "any".
type TrendFilter struct {
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Industry string     `json:"industry,omitempty"`
	City     string     `json:"city,omitempty"`
	Stage    string     `json:"stage,omitempty"`
}

// TrendBucket is one month of deal activity.
type TrendBucket struct {
	Month          time.Time `json:"month"`
	Deals          int       `json:"deals"`
	Startups       int       `json:"startups"`
	DisclosedDeals int       `json:"disclosed_deals"`
	DisclosedUSD   float64   `json:"disclosed_usd"`
}

// FundingAnalysis is a monthly trend series with totals.
type FundingAnalysis struct {
	Filter       TrendFilter   `json:"filter"`
	Buckets      []TrendBucket `json:"buckets"`
	TotalDeals   int           `json:"total_deals"`
	DisclosedUSD float64       `json:"disclosed_usd"`
}
