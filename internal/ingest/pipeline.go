package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/ventura/internal/csvsource"
	"github.com/ashita-ai/ventura/internal/model"
	"github.com/ashita-ai/ventura/internal/normalize"
	"github.com/ashita-ai/ventura/internal/telemetry"
)

var tracer = telemetry.Tracer("ventura/ingest")

// DefaultProgressEvery is the row interval between progress log lines.
const DefaultProgressEvery = 50

// Options control a Pipeline.
type Options struct {
	// DryRun runs every step against a fresh MemoryStore so nothing reaches
	// the configured store.
	DryRun bool

	// ProgressEvery logs a progress line every N processed rows.
	ProgressEvery int
}

// Pipeline walks the data directories and writes every row through a
// Resolver and Linker. Rows are processed strictly in order, one at a time.
type Pipeline struct {
	store  Store
	logger *slog.Logger
	opts   Options

	rowsCounter   metric.Int64Counter
	errorsCounter metric.Int64Counter
	filesCounter  metric.Int64Counter
}

// NewPipeline creates a pipeline writing to store. store may be nil when
// opts.DryRun is set.
func NewPipeline(store Store, logger *slog.Logger, opts Options) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	p := &Pipeline{store: store, logger: logger, opts: opts}

	meter := telemetry.Meter("ventura/ingest")
	p.rowsCounter, _ = meter.Int64Counter("ventura.ingest.rows",
		metric.WithDescription("Rows written by the migration"))
	p.errorsCounter, _ = meter.Int64Counter("ventura.ingest.row_errors",
		metric.WithDescription("Rows that failed and were recorded in the report"))
	p.filesCounter, _ = meter.Int64Counter("ventura.ingest.files",
		metric.WithDescription("CSV files opened by the migration"))
	return p
}

// run holds the state of a single Run.
type run struct {
	*Pipeline
	report   *Report
	resolver *Resolver
	linker   *Linker
	attrs    metric.MeasurementOption
}

// Run migrates every *.csv file under dirs. Directories are visited in
// lexicographic order and files within a directory in name order. A missing
// directory is logged and skipped. A failing row or unreadable file is
// recorded in the report and the run continues. Only context cancellation
// (or a nil store outside dry-run) stops the run early; the partial report
// is returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, dirs []string) (*Report, error) {
	store := p.store
	if p.opts.DryRun {
		store = NewMemoryStore()
	}
	report := &Report{
		RunID:     uuid.New(),
		DryRun:    p.opts.DryRun,
		StartedAt: time.Now().UTC(),
		Errors:    []RowError{},
	}
	if store == nil {
		return report, errors.New("ingest: no store configured")
	}

	r := &run{
		Pipeline: p,
		report:   report,
		resolver: NewResolver(store, &report.Stats),
		linker:   NewLinker(store, &report.Stats),
		attrs:    metric.WithAttributes(attribute.Bool("dry_run", p.opts.DryRun)),
	}

	ctx, span := tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("ventura.run_id", report.RunID.String()),
		attribute.Bool("ventura.dry_run", p.opts.DryRun),
	))
	defer span.End()

	p.logger.Info("ingest: run started",
		"run_id", report.RunID, "dry_run", p.opts.DryRun, "dirs", dirs)

	var err error
	for _, dir := range slices.Sorted(slices.Values(dirs)) {
		if err = r.processDir(ctx, dir); err != nil {
			break
		}
	}
	report.Duration = time.Since(report.StartedAt)

	span.SetAttributes(
		attribute.Int("ventura.rows_processed", report.Stats.RowsProcessed),
		attribute.Int("ventura.row_errors", len(report.Errors)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("ingest: run aborted", "run_id", report.RunID, "error", err)
		return report, err
	}

	p.logger.Info("ingest: run finished",
		"run_id", report.RunID,
		"files", report.Stats.FilesProcessed,
		"rows", report.Stats.RowsProcessed,
		"errors", len(report.Errors),
		"duration", report.Duration)
	return report, nil
}

func (r *run) processDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("ingest: directory not found", "dir", dir)
			r.report.MissingDirs = append(r.report.MissingDirs, dir)
			return nil
		}
		r.report.addError(dir, 0, err)
		r.logger.Warn("ingest: read directory", "dir", dir, "error", err)
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	r.logger.Info("ingest: processing directory", "dir", dir, "files", len(files))

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processFile(ctx, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) processFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	ctx, span := tracer.Start(ctx, "ingest.file", trace.WithAttributes(
		attribute.String("ventura.file", path),
	))
	defer span.End()

	var fundingDate *time.Time
	if period, ok := normalize.ExtractPeriodFromFilename(name); ok {
		fundingDate = &period
	} else {
		r.logger.Warn("ingest: no period in file name, funding dates left empty", "file", path)
	}

	f, err := csvsource.Open(path)
	if err != nil {
		r.report.Stats.FilesFailed++
		r.recordError(ctx, name, 0, err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}
	defer func() { _ = f.Close() }()

	r.filesCounter.Add(ctx, 1, r.attrs)
	r.logger.Info("ingest: processing file", "file", path)

	startRows, startErrs := r.report.Stats.RowsProcessed, len(r.report.Errors)
	for rec, err := range f.Records() {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			var rowErr *csvsource.RowError
			if errors.As(err, &rowErr) {
				r.recordError(ctx, name, rowErr.Line, rowErr.Err)
				continue
			}
			// The reader cannot continue past a non-parse failure.
			r.recordError(ctx, name, 0, err)
			break
		}

		row, ok := normalize.Row(rec, name, fundingDate)
		if !ok {
			r.report.Stats.RowsSkipped++
			continue
		}
		if err := r.processRow(ctx, row); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			r.recordError(ctx, name, row.Line, err)
			continue
		}

		r.report.Stats.RowsProcessed++
		r.rowsCounter.Add(ctx, 1, r.attrs)
		if r.report.Stats.RowsProcessed%r.opts.ProgressEvery == 0 {
			r.logger.Info("ingest: progress", "rows", r.report.Stats.RowsProcessed)
		}
	}

	r.report.Stats.FilesProcessed++
	span.SetAttributes(
		attribute.Int("ventura.rows", r.report.Stats.RowsProcessed-startRows),
		attribute.Int("ventura.row_errors", len(r.report.Errors)-startErrs),
	)
	r.logger.Info("ingest: completed file", "file", path,
		"rows", r.report.Stats.RowsProcessed-startRows,
		"errors", len(r.report.Errors)-startErrs)
	return nil
}

// processRow writes one normalized row: the startup, its founders and their
// links, then one funding round per investor.
func (r *run) processRow(ctx context.Context, row model.Row) error {
	startupID, err := r.resolver.Startup(ctx, row.Startup)
	if err != nil {
		return err
	}

	for _, name := range row.Founders {
		founderID, err := r.resolver.Founder(ctx, name)
		if err != nil {
			return err
		}
		if err := r.linker.LinkFounder(ctx, startupID, founderID); err != nil {
			return err
		}
	}

	for _, name := range row.Investors {
		investorID, err := r.resolver.Investor(ctx, name)
		if err != nil {
			return err
		}
		round := model.FundingRound{
			StartupID:       startupID,
			InvestorID:      investorID,
			AmountUSD:       row.AmountUSD,
			InvestmentStage: row.InvestmentStage,
			FundingDate:     row.FundingDate,
			SourceFile:      row.SourceFile,
		}
		if err := r.linker.InsertFundingRound(ctx, round); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) recordError(ctx context.Context, file string, row int, err error) {
	r.report.addError(file, row, err)
	r.errorsCounter.Add(ctx, 1, r.attrs)
	r.logger.Warn("ingest: row failed", "file", file, "row", row, "error", err)
}
