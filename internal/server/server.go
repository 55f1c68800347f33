package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/ventura/internal/ratelimit"
)

// Server is the Ventura HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	// Required dependencies.
	MCPServer *mcpserver.MCPServer
	DB        Pinger
	Logger    *slog.Logger

	// Optional (nil = every request allowed).
	Limiter ratelimit.Limiter

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	h := NewHandlers(cfg.DB, cfg.Version)

	mux := http.NewServeMux()

	// MCP StreamableHTTP transport, rate limited per client address.
	mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
	mcpRL := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, cfg.Logger)
	mux.Handle("/mcp", mcpRL(mcpHTTP))

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
