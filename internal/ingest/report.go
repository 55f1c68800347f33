package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stats are the running counters of a migration. Inserted counts are records
// created by this run; StartupsUpdated counts rows that matched an existing
// startup.
type Stats struct {
	FilesProcessed        int `json:"files_processed"`
	FilesFailed           int `json:"files_failed"`
	RowsProcessed         int `json:"rows_processed"`
	RowsSkipped           int `json:"rows_skipped"`
	StartupsInserted      int `json:"startups_inserted"`
	StartupsUpdated       int `json:"startups_updated"`
	FoundersInserted      int `json:"founders_inserted"`
	FounderLinks          int `json:"founder_links"`
	InvestorsInserted     int `json:"investors_inserted"`
	FundingRoundsInserted int `json:"funding_rounds_inserted"`
}

// RowError records a row (or, with Row == 0, a whole file) that failed.
type RowError struct {
	File    string `json:"file"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report is the outcome of one Pipeline.Run.
type Report struct {
	RunID       uuid.UUID     `json:"run_id"`
	DryRun      bool          `json:"dry_run"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Stats       Stats         `json:"stats"`
	Errors      []RowError    `json:"errors"`
	MissingDirs []string      `json:"missing_dirs,omitempty"`
}

// DefaultMaxErrors is the number of sample errors Write lists by default.
const DefaultMaxErrors = 10

func (r *Report) addError(file string, row int, err error) {
	r.Errors = append(r.Errors, RowError{File: file, Row: row, Message: err.Error()})
}

// Write renders a human-readable summary. At most maxErrors sample errors
// are listed; the remainder is summarized as "... and K more errors".
// A non-positive maxErrors uses DefaultMaxErrors.
func (r *Report) Write(w io.Writer, maxErrors int) error {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	title := "Migration Summary"
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(&b, "%s\n%s\n%s\n", rule, title, rule)
	fmt.Fprintf(&b, "Files processed:       %d\n", r.Stats.FilesProcessed)
	if r.Stats.FilesFailed > 0 {
		fmt.Fprintf(&b, "Files failed:          %d\n", r.Stats.FilesFailed)
	}
	fmt.Fprintf(&b, "Rows processed:        %d\n", r.Stats.RowsProcessed)
	if r.Stats.RowsSkipped > 0 {
		fmt.Fprintf(&b, "Rows skipped:          %d\n", r.Stats.RowsSkipped)
	}
	fmt.Fprintf(&b, "Startups inserted:     %d\n", r.Stats.StartupsInserted)
	fmt.Fprintf(&b, "Startups updated:      %d\n", r.Stats.StartupsUpdated)
	fmt.Fprintf(&b, "Founders inserted:     %d\n", r.Stats.FoundersInserted)
	fmt.Fprintf(&b, "Founder links:         %d\n", r.Stats.FounderLinks)
	fmt.Fprintf(&b, "Investors inserted:    %d\n", r.Stats.InvestorsInserted)
	fmt.Fprintf(&b, "Funding rounds:        %d\n", r.Stats.FundingRoundsInserted)
	fmt.Fprintf(&b, "Errors:                %d\n", len(r.Errors))

	for _, dir := range r.MissingDirs {
		fmt.Fprintf(&b, "Missing directory:     %s\n", dir)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nErrors encountered:\n")
		for _, e := range r.Errors[:min(len(r.Errors), maxErrors)] {
			fmt.Fprintf(&b, "   %s:%d - %s\n", e.File, e.Row, e.Message)
		}
		if extra := len(r.Errors) - maxErrors; extra > 0 {
			fmt.Fprintf(&b, "   ... and %d more errors\n", extra)
		}
	}

	fmt.Fprintf(&b, "\nTotal time: %.2fs\n%s\n", r.Duration.Seconds(), rule)

	_, err := io.WriteString(w, b.String())
	return err
}
