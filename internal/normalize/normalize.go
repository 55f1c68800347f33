// Package normalize turns raw CSV strings into typed values.
//
// Every function here is total: malformed input yields a "no value" result
// (ok == false, nil, or an empty slice), never an error or a panic.
package normalize

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/ventura/internal/csvsource"
	"github.com/ashita-ai/ventura/internal/model"
)

const undisclosed = "undisclosed"

// ParseAmount parses a USD amount such as "$3,000,000". Anything mentioning
// "undisclosed" (any case), empty input, and non-numeric residue yield no value.
func ParseAmount(s string) (float64, bool) {
	if strings.Contains(strings.ToLower(s), undisclosed) {
		return 0, false
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',':
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// dateLayouts are tried in order. Slash dates are read month-first; the
// day-first layout only matches when the first component exceeds 12.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"2006/1/2",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"2006-01",
	"2006",
}

// ParseDate parses a calendar date in any of the common spreadsheet
// formats. The result is midnight UTC. Empty or invalid input yields no value.
func ParseDate(s string) (time.Time, bool) {
	s = CleanName(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

var periodPattern = regexp.MustCompile(`^([A-Za-z]{3,9})_(\d{4})\.csv$`)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ExtractPeriodFromFilename derives the reporting period from a file named
// like "Jan_2020.csv" and returns the first day of that month (UTC).
// Directory components are ignored.
func ExtractPeriodFromFilename(name string) (time.Time, bool) {
	m := periodPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

// SplitNames splits a comma-separated list of people or firms. Each piece is
// cleaned; empty pieces and the "undisclosed" placeholder are dropped.
func SplitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := CleanName(part)
		if name == "" || strings.EqualFold(name, undisclosed) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// CleanName trims s and collapses internal whitespace runs to one space.
func CleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// optional returns nil for values that are empty once cleaned.
func optional(s string) *string {
	v := CleanName(s)
	if v == "" {
		return nil
	}
	return &v
}

// Row normalizes one parsed record. fundingDate is the period derived from
// the source file name (nil when the name carries no period). It returns
// false when the record has no startup name; such rows are skipped.
func Row(rec csvsource.Record, sourceFile string, fundingDate *time.Time) (model.Row, bool) {
	name := CleanName(rec.StartupName)
	if name == "" {
		return model.Row{}, false
	}

	row := model.Row{
		SourceFile: sourceFile,
		Line:       rec.Line,
		Startup: model.Startup{
			Name:        name,
			City:        optional(rec.City),
			Industry:    optional(rec.Industry),
			SubVertical: optional(rec.SubVertical),
		},
		Founders:        SplitNames(rec.Founders),
		Investors:       SplitNames(rec.Investors),
		InvestmentStage: CleanName(rec.InvestmentStage),
		FundingDate:     fundingDate,
	}
	if d, ok := ParseDate(rec.FoundingDate); ok {
		row.Startup.FoundingDate = &d
	}
	if amt, ok := ParseAmount(rec.Amount); ok {
		row.AmountUSD = &amt
	}
	return row, true
}
