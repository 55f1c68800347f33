// Command ventura-migrate loads the monthly startup funding CSV exports into
// PostgreSQL and prints a summary report.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/ventura/internal/config"
	"github.com/ashita-ai/ventura/internal/ingest"
	"github.com/ashita-ai/ventura/internal/storage"
	"github.com/ashita-ai/ventura/internal/telemetry"
	"github.com/ashita-ai/ventura/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	if err != nil {
		slog.Error("fatal error", "error", err)
	}
	return exitCode(err)
}

const longHelp = `Migrate every <Mon>_<YYYY>.csv file under VENTURA_DATA_DIRS into the
startups, founders, investors, startup_founders and funding_rounds tables,
then print a summary report. Row errors are reported and never abort the run.`

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:           "ventura-migrate",
		Short:         "Migrate startup funding CSV exports into PostgreSQL",
		Long:          longHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), dryRun, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "process every file without writing to the database")
	return cmd
}

func run(ctx context.Context, dryRun bool, stdout, stderr io.Writer) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr so the report on stdout stays readable.
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	logger.Info("ventura-migrate starting", "version", version, "dry_run", dryRun, "dirs", cfg.DataDirs)

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName + "-migrate",
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	var store ingest.Store
	if !dryRun {
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return databaseError(err)
		}
		defer db.Close()
		store = db
	}

	pipeline := ingest.NewPipeline(store, logger, ingest.Options{
		DryRun:        dryRun,
		ProgressEvery: cfg.ProgressEvery,
	})
	report, runErr := pipeline.Run(ctx, cfg.DataDirs)
	if report != nil {
		if err := report.Write(stdout, cfg.ReportMaxErrors); err != nil {
			logger.Warn("write report", "error", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("migration: %w", runErr)
	}
	return nil
}

// openDatabase connects, applies the embedded schema, and registers pool
// metrics. The caller owns the returned DB.
func openDatabase(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := storage.New(ctx, cfg.DatabaseURL, storage.PoolOptions{
		MaxConns:        int32(cfg.DBMaxConns), //nolint:gosec // validated positive in config.Validate
		ConnectTimeout:  cfg.DBConnectTimeout,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}
	db.RegisterPoolMetrics()
	return db, nil
}
