// Package csvsource reads the monthly funding CSV exports.
//
// A File maps header names to columns once and then yields one Record per
// data line. Ragged rows are tolerated; rows with broken quoting are
// reported as *RowError and iteration continues with the next line.
package csvsource

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Header names recognized in the export.
const (
	ColStartupName     = "Startup Name"
	ColFoundingDate    = "Founding Date"
	ColCity            = "City"
	ColIndustry        = "Industry/Vertical"
	ColSubVertical     = "Sub-Vertical"
	ColFounders        = "Founders"
	ColInvestors       = "Investors"
	ColAmount          = "Amount(in USD)"
	ColInvestmentStage = "Investment Stage"
)

// ErrMissingColumn is returned by Open when a required header is absent.
var ErrMissingColumn = errors.New("csvsource: missing required column")

// Record holds the raw string values of one data line. Columns absent from
// the file (or from a short row) are empty.
type Record struct {
	Line int // 1-based line number in the source file

	StartupName     string
	FoundingDate    string
	City            string
	Industry        string
	SubVertical     string
	Founders        string
	Investors       string
	Amount          string
	InvestmentStage string
}

// RowError reports a line that could not be split into fields.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// File is an open CSV export.
type File struct {
	name   string
	closer io.Closer
	r      *csv.Reader
	index  map[string]int
}

// Open opens path, reads its header row, and checks that the startup name
// column is present.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing of configured data dirs
	if err != nil {
		return nil, fmt.Errorf("csvsource: open %s: %w", path, err)
	}
	file, err := newFile(filepath.Base(path), f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return file, nil
}

// NewReader wraps an already-open stream. name is used in error messages.
func NewReader(name string, r io.Reader) (*File, error) {
	return newFile(name, r, nil)
}

func newFile(name string, r io.Reader, closer io.Closer) (*File, error) {
	br := stripUTF8BOM(bufio.NewReader(r))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	// Strict quoting: an unterminated quote must not swallow the rest of the file.
	cr.LazyQuotes = false

	header, err := readHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("csvsource: %s: %w", name, err)
	}
	index := headerIndex(header)
	if _, ok := index[ColStartupName]; !ok {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, ColStartupName, name)
	}
	return &File{name: name, closer: closer, r: cr, index: index}, nil
}

// Name returns the base name of the file.
func (f *File) Name() string { return f.name }

// Close releases the underlying file.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Records yields every data line lazily. A malformed line is yielded as a
// *RowError and iteration continues; any other read failure is yielded once
// and ends the sequence. Blank lines are skipped.
func (f *File) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			fields, err := f.r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					if !yield(Record{Line: pe.StartLine}, &RowError{Line: pe.StartLine, Err: pe.Err}) {
						return
					}
					continue
				}
				yield(Record{}, fmt.Errorf("csvsource: read %s: %w", f.name, err))
				return
			}
			line, _ := f.r.FieldPos(0)
			if !yield(f.record(fields, line), nil) {
				return
			}
		}
	}
}

func (f *File) record(fields []string, line int) Record {
	get := func(col string) string {
		i, ok := f.index[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	return Record{
		Line:            line,
		StartupName:     get(ColStartupName),
		FoundingDate:    get(ColFoundingDate),
		City:            get(ColCity),
		Industry:        get(ColIndustry),
		SubVertical:     get(ColSubVertical),
		Founders:        get(ColFounders),
		Investors:       get(ColInvestors),
		Amount:          get(ColAmount),
		InvestmentStage: get(ColInvestmentStage),
	}
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header")
		}
		return nil, err
	}
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding")
		}
	}
	return h, nil
}

// headerIndex maps each header name to its column. The first occurrence of a
// duplicated name wins.
func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := m[name]; !dup {
			m[name] = i
		}
	}
	return m
}
