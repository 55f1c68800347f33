// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration shared by ventura-migrate and ventura.
type Config struct {
	// Database settings.
	DatabaseURL       string
	DBMaxConns        int
	DBConnectTimeout  time.Duration
	DBMaxConnIdleTime time.Duration

	// Migration settings.
	DataDirs        []string // Directories of <Mon>_<YYYY>.csv files, relative to the working directory.
	ProgressEvery   int      // Log progress every N processed rows; 0 disables.
	ReportMaxErrors int      // Sample errors shown in the end-of-run report.

	// MCP server settings.
	Port         int
	MCPTransport string // "http" or "stdio"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	HTTPRPS      float64 // Per-client request rate on /mcp.
	HTTPBurst    int

	// Query cache settings. Empty RedisURL disables caching.
	RedisURL string
	CacheTTL time.Duration

	// Web search settings. Empty TavilyAPIKey disables the web_search tool.
	TavilyAPIKey   string
	TavilyBaseURL  string
	WebSearchRPS   float64
	WebSearchBurst int

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed value is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg := Config{
		DatabaseURL:   databaseURL(),
		DataDirs:      envList("VENTURA_DATA_DIRS", []string{"data/2020", "data/2021"}),
		MCPTransport:  envStr("VENTURA_MCP_TRANSPORT", "http"),
		RedisURL:      envStr("REDIS_URL", ""),
		TavilyAPIKey:  envStr("TAVILY_API_KEY", ""),
		TavilyBaseURL: envStr("TAVILY_BASE_URL", "https://api.tavily.com"),
		OTELEndpoint:  envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "ventura"),
		LogLevel:      envStr("VENTURA_LOG_LEVEL", "info"),
	}

	cfg.DBMaxConns, err = envInt("VENTURA_DB_MAX_CONNS", 10)
	collect(err)
	cfg.DBConnectTimeout, err = envDuration("VENTURA_DB_CONNECT_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.DBMaxConnIdleTime, err = envDuration("VENTURA_DB_IDLE_TIMEOUT", 20*time.Second)
	collect(err)
	cfg.ProgressEvery, err = envInt("VENTURA_PROGRESS_EVERY", 50)
	collect(err)
	cfg.ReportMaxErrors, err = envInt("VENTURA_REPORT_MAX_ERRORS", 10)
	collect(err)
	cfg.Port, err = envInt("VENTURA_PORT", 8080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("VENTURA_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("VENTURA_WRITE_TIMEOUT", 60*time.Second)
	collect(err)
	cfg.HTTPRPS, err = envFloat("VENTURA_HTTP_RPS", 20)
	collect(err)
	cfg.HTTPBurst, err = envInt("VENTURA_HTTP_BURST", 40)
	collect(err)
	cfg.CacheTTL, err = envDuration("VENTURA_CACHE_TTL", 5*time.Minute)
	collect(err)
	cfg.WebSearchRPS, err = envFloat("VENTURA_WEBSEARCH_RPS", 1)
	collect(err)
	cfg.WebSearchBurst, err = envInt("VENTURA_WEBSEARCH_BURST", 5)
	collect(err)
	cfg.OTELInsecure, err = envBool("VENTURA_OTEL_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configured values are usable.
// DatabaseURL is checked separately by RequireDatabase because a dry run never connects.
func (c Config) Validate() error {
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("config: VENTURA_DB_MAX_CONNS must be positive")
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("config: VENTURA_PROGRESS_EVERY must not be negative")
	}
	if c.ReportMaxErrors < 0 {
		return fmt.Errorf("config: VENTURA_REPORT_MAX_ERRORS must not be negative")
	}
	if len(c.DataDirs) == 0 {
		return fmt.Errorf("config: VENTURA_DATA_DIRS must name at least one directory")
	}
	switch c.MCPTransport {
	case "http", "stdio":
	default:
		return fmt.Errorf("config: VENTURA_MCP_TRANSPORT must be \"http\" or \"stdio\", got %q", c.MCPTransport)
	}
	if c.HTTPRPS <= 0 || c.HTTPBurst <= 0 {
		return fmt.Errorf("config: VENTURA_HTTP_RPS and VENTURA_HTTP_BURST must be positive")
	}
	if c.WebSearchRPS <= 0 || c.WebSearchBurst <= 0 {
		return fmt.Errorf("config: VENTURA_WEBSEARCH_RPS and VENTURA_WEBSEARCH_BURST must be positive")
	}
	return nil
}

// RequireDatabase reports whether a usable connection string is configured.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required (or SUPABASE_CONNECTION_STRING, or SUPABASE_URL with SUPABASE_DB_PASSWORD)")
	}
	if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("config: database URL must use the postgres:// or postgresql:// scheme")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// databaseURL resolves the connection string. DATABASE_URL wins, then the
// Supabase variables the dataset tooling has always used.
func databaseURL() string {
	if v := envStr("DATABASE_URL", ""); v != "" {
		return v
	}
	if v := envStr("SUPABASE_CONNECTION_STRING", ""); v != "" {
		return v
	}
	host := envStr("SUPABASE_URL", "")
	password := envStr("SUPABASE_DB_PASSWORD", "")
	if host == "" || password == "" {
		return ""
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	host = strings.TrimSuffix(host, "/")
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword("postgres", password),
		Host:   host + ":5432",
		Path:   "/postgres",
	}
	return u.String()
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
