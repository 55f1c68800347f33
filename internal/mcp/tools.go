package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/ventura/internal/ctxutil"
	"github.com/ashita-ai/ventura/internal/model"
	"github.com/ashita-ai/ventura/internal/service/insights"
	"github.com/ashita-ai/ventura/internal/websearch"
)

func (s *Server) registerTools() {
	// company_lookup: one startup's profile.
	s.mcpServer.AddTool(
		mcplib.NewTool("company_lookup",
			mcplib.WithDescription(`Look up a startup by name.

WHAT YOU GET BACK:
- the startup's city, industry, sub-vertical and founding date
- its founders
- its deals: date, stage, disclosed amount and the investors in each
- other_matches: other startups whose names also matched

Names are matched loosely and case-insensitively ("swigy" finds "Swiggy").`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("name",
				mcplib.Description("Startup name, or part of it"),
				mcplib.Required(),
			),
		),
		s.handleCompanyLookup,
	)

	// investor_intelligence: one investor's portfolio.
	s.mcpServer.AddTool(
		mcplib.NewTool("investor_intelligence",
			mcplib.WithDescription(`Look up an investor by name and summarize its portfolio.

WHAT YOU GET BACK:
- every startup the investor backed, with round count, stages, disclosed
  amount of those rounds and the latest funding date
- totals across the portfolio
- other_matches: other investors whose names also matched`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("name",
				mcplib.Description("Investor name, or part of it"),
				mcplib.Required(),
			),
		),
		s.handleInvestorIntelligence,
	)

	// market_map: breakdown of an industry.
	s.mcpServer.AddTool(
		mcplib.NewTool("market_map",
			mcplib.WithDescription(`Map the funding landscape of an industry.

WHAT YOU GET BACK:
- sub_verticals and cities: startups, deals and disclosed capital per segment
- top_startups: ranked by disclosed capital raised
- top_investors: ranked by number of deals joined

The industry is matched as a case-insensitive substring ("fin" matches "Fintech").`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("industry",
				mcplib.Description("Industry name, e.g. Fintech, Edtech, Healthtech"),
				mcplib.Required(),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum entries in each list"),
				mcplib.Min(1),
				mcplib.Max(insights.MaxMarketTop),
				mcplib.DefaultNumber(insights.DefaultMarketTop),
			),
		),
		s.handleMarketMap,
	)

	// funding_analysis: monthly activity.
	s.mcpServer.AddTool(
		mcplib.NewTool("funding_analysis",
			mcplib.WithDescription(`Analyze funding activity month by month.

WHAT YOU GET BACK: one bucket per month with the number of deals, distinct
startups funded, deals with a disclosed amount and the disclosed total, plus
totals for the whole range. Every filter is optional; text filters are
case-insensitive substrings.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("start_date",
				mcplib.Description("Earliest funding date, YYYY-MM-DD or YYYY-MM"),
			),
			mcplib.WithString("end_date",
				mcplib.Description("Latest funding date, YYYY-MM-DD or YYYY-MM"),
			),
			mcplib.WithString("industry", mcplib.Description("Only startups in this industry")),
			mcplib.WithString("city", mcplib.Description("Only startups based in this city")),
			mcplib.WithString("stage", mcplib.Description("Only rounds at this stage, e.g. Seed, Series A")),
		),
		s.handleFundingAnalysis,
	)

	if s.searcher == nil {
		return
	}

	// web_search: current information beyond the database.
	s.mcpServer.AddTool(
		mcplib.NewTool("web_search",
			mcplib.WithDescription(`Search the web for current information the funding database does not hold:
recent news, rounds after the last deal sheet, company websites.

Prefer the database tools for anything they can answer.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("query",
				mcplib.Description("Search query"),
				mcplib.Required(),
			),
			mcplib.WithNumber("max_results",
				mcplib.Description("Maximum results to return"),
				mcplib.Min(1),
				mcplib.Max(20),
				mcplib.DefaultNumber(5),
			),
			mcplib.WithString("depth",
				mcplib.Description("Search depth"),
				mcplib.Enum(string(websearch.DepthBasic), string(websearch.DepthAdvanced)),
			),
		),
		s.handleWebSearch,
	)
}

func (s *Server) handleCompanyLookup(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return errorResult("name is required"), nil
	}

	res, err := s.insights.CompanyLookup(ctx, name)
	if err != nil {
		return s.failure(ctx, "company lookup", err), nil
	}
	return jsonResult(map[string]any{
		"query":         res.Query,
		"company":       compactProfile(res.Profile),
		"other_matches": res.OtherMatches,
	})
}

func (s *Server) handleInvestorIntelligence(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return errorResult("name is required"), nil
	}

	res, err := s.insights.InvestorIntelligence(ctx, name)
	if err != nil {
		return s.failure(ctx, "investor lookup", err), nil
	}
	return jsonResult(map[string]any{
		"query":         res.Query,
		"investor":      compactPortfolio(res.Portfolio),
		"other_matches": res.OtherMatches,
	})
}

func (s *Server) handleMarketMap(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	industry := request.GetString("industry", "")
	if strings.TrimSpace(industry) == "" {
		return errorResult("industry is required"), nil
	}
	limit := request.GetInt("limit", insights.DefaultMarketTop)
	if limit < 1 || limit > insights.MaxMarketTop {
		return errorResult(fmt.Sprintf("limit must be between 1 and %d", insights.MaxMarketTop)), nil
	}

	m, err := s.insights.MarketMap(ctx, industry, limit)
	if err != nil {
		return s.failure(ctx, "market map", err), nil
	}
	return jsonResult(m)
}

func (s *Server) handleFundingAnalysis(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var f model.TrendFilter
	var err error
	if f.From, err = parseDateArg(request.GetString("start_date", "")); err != nil {
		return errorResult("start_date: " + err.Error()), nil
	}
	if f.To, err = parseDateArg(request.GetString("end_date", "")); err != nil {
		return errorResult("end_date: " + err.Error()), nil
	}
	f.Industry = request.GetString("industry", "")
	f.City = request.GetString("city", "")
	f.Stage = request.GetString("stage", "")

	a, err := s.insights.FundingAnalysis(ctx, f)
	if err != nil {
		return s.failure(ctx, "funding analysis", err), nil
	}
	return jsonResult(a)
}

func (s *Server) handleWebSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return errorResult("query is required"), nil
	}
	maxResults := request.GetInt("max_results", 5)
	if maxResults < 1 || maxResults > 20 {
		return errorResult("max_results must be between 1 and 20"), nil
	}
	depth := websearch.Depth(request.GetString("depth", string(websearch.DepthBasic)))
	if depth != websearch.DepthBasic && depth != websearch.DepthAdvanced {
		return errorResult(`depth must be "basic" or "advanced"`), nil
	}

	resp, err := s.searcher.Search(ctx, query, websearch.Options{
		MaxResults:    maxResults,
		Depth:         depth,
		IncludeAnswer: true,
	})
	if err != nil {
		if errors.Is(err, websearch.ErrRateLimited) {
			return errorResult("web search is rate limited, try again shortly"), nil
		}
		s.logger.Warn("mcp: web search failed", "error", err)
		return errorResult(fmt.Sprintf("web search failed: %v", err)), nil
	}
	for i := range resp.Results {
		resp.Results[i].Content = truncate(resp.Results[i].Content, maxCompactContent)
	}
	return jsonResult(resp)
}

// failure turns a service error into a tool error. Caller mistakes are
// reported verbatim; anything else is logged.
func (s *Server) failure(ctx context.Context, op string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, insights.ErrInvalidInput):
		return errorResult(err.Error())
	case errors.Is(err, insights.ErrNotFound):
		return errorResult(fmt.Sprintf("%s: no match found", op))
	default:
		s.logger.Error("mcp: tool failed", "op", op, "error", err,
			"request_id", ctxutil.RequestIDFromContext(ctx))
		return errorResult(fmt.Sprintf("%s failed: %v", op, err))
	}
}

// parseDateArg accepts YYYY-MM-DD or YYYY-MM. Empty means unset.
func parseDateArg(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, "2006-01"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a YYYY-MM-DD or YYYY-MM date", v)
}
