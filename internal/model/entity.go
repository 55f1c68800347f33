// Package model defines the core domain types for Ventura.
//
// Entity types correspond directly to the tables created by the embedded
// migrations. Nullable columns are pointers; a nil pointer is SQL NULL.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Startup is a company, identified by its name. Name matching is
// case-insensitive; the casing of the first observation is kept.
type Startup struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	FoundingDate *time.Time `json:"founding_date,omitempty"`
	City         *string    `json:"city,omitempty"`
	Industry     *string    `json:"industry,omitempty"`
	SubVertical  *string    `json:"sub_vertical,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Founder is a person associated with one or more startups. Two people
// with the same name are the same Founder.
type Founder struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Investor is a fund, firm, or angel identified by name.
type Investor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// StartupFounder associates a founder with a startup. Unique per pair.
type StartupFounder struct {
	StartupID uuid.UUID `json:"startup_id"`
	FounderID uuid.UUID `json:"founder_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FundingRound records one investor's participation in a startup's round
// for a reporting period. Rows are append-only: the same startup/investor
// pair reported in two files yields two rounds.
type FundingRound struct {
	ID              uuid.UUID  `json:"id"`
	StartupID       uuid.UUID  `json:"startup_id"`
	InvestorID      uuid.UUID  `json:"investor_id"`
	AmountUSD       *float64   `json:"amount_usd,omitempty"` // nil when undisclosed
	InvestmentStage string     `json:"investment_stage"`
	FundingDate     *time.Time `json:"funding_date,omitempty"` // first day of the source file's period
	SourceFile      string     `json:"source_file"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TableCounts holds the row count of every table the migration writes.
type TableCounts struct {
	Startups        int64 `json:"startups"`
	Founders        int64 `json:"founders"`
	Investors       int64 `json:"investors"`
	StartupFounders int64 `json:"startup_founders"`
	FundingRounds   int64 `json:"funding_rounds"`
}
