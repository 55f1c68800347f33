package model

import "time"

// Row is one CSV record after normalization, ready to be resolved into
// entities and links.
type Row struct {
	SourceFile string
	Line       int

	Startup         Startup // only Name and the nullable attributes are set
	Founders        []string
	Investors       []string
	AmountUSD       *float64
	InvestmentStage string
	FundingDate     *time.Time
}
