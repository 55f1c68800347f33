// Package mcp implements the Model Context Protocol server for Ventura.
//
// Every tool is read-only: the server answers questions about the migrated
// funding database and, when a Tavily key is configured, searches the web.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/ventura/internal/model"
	"github.com/ashita-ai/ventura/internal/websearch"
)

// Insights is the query service behind the analyst tools.
type Insights interface {
	CompanyLookup(ctx context.Context, name string) (model.CompanyLookup, error)
	InvestorIntelligence(ctx context.Context, name string) (model.InvestorLookup, error)
	MarketMap(ctx context.Context, industry string, limit int) (model.MarketMap, error)
	FundingAnalysis(ctx context.Context, f model.TrendFilter) (model.FundingAnalysis, error)
}

// WebSearcher runs web searches for the web_search tool.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts websearch.Options) (*websearch.Response, error)
}

// StatsSource reports database table sizes for the summary resource.
type StatsSource interface {
	Counts(ctx context.Context) (model.TableCounts, error)
}

// Server wraps the MCP server with Ventura's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	insights  Insights
	searcher  WebSearcher
	stats     StatsSource
	logger    *slog.Logger
}

// New creates and configures an MCP server. searcher may be nil, in which
// case web_search is not registered. stats may be nil, in which case the
// database summary resource is not registered.
func New(insights Insights, searcher WebSearcher, stats StatsSource, logger *slog.Logger, version string) *Server {
	s := &Server{
		insights: insights,
		searcher: searcher,
		stats:    stats,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"ventura",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `Ventura answers questions about venture funding rounds reported in monthly
deal sheets: startups, founders, investors, and the rounds that link them.

Start with company_lookup or investor_intelligence for a named entity,
market_map for an industry, and funding_analysis for activity over time.
Names are matched loosely; check other_matches when the match looks wrong.
Amounts are in USD; a missing amount means the round was undisclosed.`

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
