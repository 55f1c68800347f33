package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	summaryURI         = "ventura://database/summary"
	companyURIPrefix   = "ventura://company/"
	companyURITemplate = companyURIPrefix + "{name}"
)

func (s *Server) registerResources() {
	// ventura://database/summary: how much data the tools can see.
	if s.stats != nil {
		s.mcpServer.AddResource(
			mcplib.NewResource(
				summaryURI,
				"Database Summary",
				mcplib.WithResourceDescription("Row counts of the migrated startups, founders, investors and funding rounds"),
				mcplib.WithMIMEType("application/json"),
			),
			s.handleDatabaseSummary,
		)
	}

	// ventura://company/{name}: a startup profile by name.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			companyURITemplate,
			"Company Profile",
			mcplib.WithTemplateDescription("Profile of the startup best matching {name}"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleCompanyResource,
	)
}

func (s *Server) handleDatabaseSummary(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	counts, err := s.stats.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: database summary: %w", err)
	}

	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal summary: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      summaryURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCompanyResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	name, err := companyNameFromURI(uri)
	if err != nil {
		return nil, err
	}

	res, err := s.insights.CompanyLookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("mcp: company resource: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"query":         res.Query,
		"company":       compactProfile(res.Profile),
		"other_matches": res.OtherMatches,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal company: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// companyNameFromURI extracts the unescaped {name} of ventura://company/{name}.
func companyNameFromURI(uri string) (string, error) {
	raw, ok := strings.CutPrefix(uri, companyURIPrefix)
	if !ok || raw == "" || strings.Contains(raw, "/") {
		return "", fmt.Errorf("mcp: invalid company URI: %s", uri)
	}
	name, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("mcp: invalid company URI: %s", uri)
	}
	return name, nil
}
