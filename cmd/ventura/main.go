// Command ventura serves the migrated funding dataset to MCP clients over
// streamable HTTP or stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/ventura/internal/cache"
	"github.com/ashita-ai/ventura/internal/config"
	"github.com/ashita-ai/ventura/internal/mcp"
	"github.com/ashita-ai/ventura/internal/ratelimit"
	"github.com/ashita-ai/ventura/internal/server"
	"github.com/ashita-ai/ventura/internal/service/insights"
	"github.com/ashita-ai/ventura/internal/storage"
	"github.com/ashita-ai/ventura/internal/telemetry"
	"github.com/ashita-ai/ventura/internal/websearch"
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

	if err := run(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the protocol in stdio mode.
	var logOut io.Writer = os.Stdout
	if cfg.MCPTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("ventura starting", "version", version, "transport", cfg.MCPTransport, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	db, err := storage.New(ctx, cfg.DatabaseURL, storage.PoolOptions{
		MaxConns:        int32(cfg.DBMaxConns), //nolint:gosec // validated positive in config.Validate
		ConnectTimeout:  cfg.DBConnectTimeout,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	db.RegisterPoolMetrics()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	queryCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = queryCache.Close() }()

	svc := insights.New(db, queryCache, cfg.CacheTTL, logger)

	// Web search is optional and disabled without an API key.
	var searcher mcp.WebSearcher
	if cfg.TavilyAPIKey != "" {
		searchLimiter := ratelimit.NewMemoryLimiter(cfg.WebSearchRPS, cfg.WebSearchBurst)
		defer func() { _ = searchLimiter.Close() }()
		searcher = websearch.NewClient(cfg.TavilyBaseURL, cfg.TavilyAPIKey, searchLimiter, logger)
		logger.Info("web search: enabled", "rps", cfg.WebSearchRPS, "burst", cfg.WebSearchBurst)
	} else {
		logger.Info("web search: disabled (no TAVILY_API_KEY)")
	}

	mcpSrv := mcp.New(svc, searcher, db, logger, version)

	if cfg.MCPTransport == "stdio" {
		return serveStdio(ctx, mcpSrv.MCPServer(), logger)
	}
	return serveHTTP(ctx, cfg, mcpSrv.MCPServer(), db, logger)
}

// newCache connects to Redis when REDIS_URL is set. Without it every
// lookup goes to Postgres.
func newCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		logger.Info("cache: disabled (no REDIS_URL)")
		return cache.Noop{}, nil
	}
	c, err := cache.NewRedis(ctx, cfg.RedisURL, cache.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	logger.Info("cache: redis", "ttl", cfg.CacheTTL)
	return c, nil
}

func serveStdio(ctx context.Context, mcpSrv *mcpserver.MCPServer, logger *slog.Logger) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio: %w", err)
	}
	slog.Info("ventura stopped")
	return nil
}

func serveHTTP(ctx context.Context, cfg config.Config, mcpSrv *mcpserver.MCPServer, db server.Pinger, logger *slog.Logger) error {
	limiter := ratelimit.NewMemoryLimiter(cfg.HTTPRPS, cfg.HTTPBurst)
	defer func() { _ = limiter.Close() }()
	logger.Info("rate limiting: memory (in-process token bucket)",
		"rps", cfg.HTTPRPS, "burst", cfg.HTTPBurst)

	srv := server.New(server.ServerConfig{
		MCPServer:    mcpSrv,
		DB:           db,
		Logger:       logger,
		Limiter:      limiter,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("ventura shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("ventura stopped")
	return nil
}
