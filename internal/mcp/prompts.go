package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// due-diligence: walk through what the database knows about a company.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("due-diligence",
			mcplib.WithPromptDescription("Build a funding due diligence brief for a startup"),
			mcplib.WithArgument("company",
				mcplib.ArgumentDescription("Name of the startup under review"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("focus",
				mcplib.ArgumentDescription("Optional focus area, e.g. investors, founders, valuation history"),
			),
		),
		s.handleDueDiligencePrompt,
	)

	// market-brief: summarize an industry.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("market-brief",
			mcplib.WithPromptDescription("Summarize the funding landscape of an industry"),
			mcplib.WithArgument("industry",
				mcplib.ArgumentDescription("Industry to map, e.g. Fintech"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleMarketBriefPrompt,
	)

	// analyst-setup: system prompt snippet describing the tools.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("analyst-setup",
			mcplib.WithPromptDescription("System prompt snippet explaining when to use each Ventura tool"),
		),
		s.handleAnalystSetupPrompt,
	)
}

func (s *Server) handleDueDiligencePrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	company := strings.TrimSpace(request.Params.Arguments["company"])
	if company == "" {
		return nil, fmt.Errorf("company argument is required")
	}
	focus := strings.TrimSpace(request.Params.Arguments["focus"])

	text := fmt.Sprintf(`Prepare a due diligence brief on %[1]s.

1. CALL company_lookup with name="%[1]s".
   - If the match is not the company you meant, check other_matches and retry.
   - If nothing matches, say so before using any other source.

2. For each lead investor in the deals, CALL investor_intelligence to see
   what else they back and at which stages.

3. CALL market_map with the company's industry to place it among its peers.

4. Write the brief:
   - company snapshot: city, industry, sub-vertical, founders
   - funding history: every deal with date, stage, amount and investors
   - investor quality: how active and how concentrated the backers are
   - position in the market: rank by disclosed capital among peers
   - gaps: undisclosed amounts, missing fields, anything to verify`, company)
	if focus != "" {
		text += fmt.Sprintf("\n\nGive extra weight to: %s.", focus)
	}
	if s.searcher != nil {
		text += "\n\nUse web_search only for events after the latest deal in the database, and label those findings as external."
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Due diligence brief for %s", company),
		Messages: []mcplib.PromptMessage{
			{
				Role:    mcplib.RoleUser,
				Content: mcplib.TextContent{Type: "text", Text: text},
			},
		},
	}, nil
}

func (s *Server) handleMarketBriefPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	industry := strings.TrimSpace(request.Params.Arguments["industry"])
	if industry == "" {
		return nil, fmt.Errorf("industry argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Funding landscape of %s", industry),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write a market brief on %[1]s.

1. CALL market_map with industry="%[1]s".
2. CALL funding_analysis with industry="%[1]s" to see how activity moved month by month.
3. Summarize:
   - the largest sub-verticals and cities by deal count
   - the best funded startups and the most active investors
   - whether activity is rising or falling, and at which stages
   - caveats: deals without a disclosed amount are counted but not summed`, industry),
				},
			},
		},
	}, nil
}

func (s *Server) handleAnalystSetupPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	text := `You have access to Ventura, a database of startup funding rounds built from
monthly deal sheets. Each deal lists a startup, its founders, its investors,
the stage and, when disclosed, the amount in USD.

## Which tool to use

- company_lookup: a specific startup. Try this FIRST for any company question.
- investor_intelligence: a specific investor or fund and its portfolio.
- market_map: the structure of an industry, its top startups and investors.
- funding_analysis: activity over time, optionally by industry, city or stage.`
	if s.searcher != nil {
		text += `
- web_search: recent news or anything the database does not cover. Use it
  after the database tools come back empty or stale.`
	}
	text += `

## Reporting

- Say where each fact came from: the database or an external search.
- Say when data is missing. An absent amount means undisclosed, not zero.
- Names are matched loosely. If other_matches lists a better candidate, say so.`

	return &mcplib.GetPromptResult{
		Description: "Ventura analyst workflow",
		Messages: []mcplib.PromptMessage{
			{
				Role:    mcplib.RoleUser,
				Content: mcplib.TextContent{Type: "text", Text: text},
			},
		},
	}, nil
}
