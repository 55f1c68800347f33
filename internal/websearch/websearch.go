// Package websearch queries the Tavily search API for context the funding
// database does not hold.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/ventura/internal/ratelimit"
)

// DefaultBaseURL is the public Tavily endpoint.
const DefaultBaseURL = "https://api.tavily.com"

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
	limiterKey        = "websearch"
)

// ErrRateLimited is returned when the local limiter refuses a call.
var ErrRateLimited = errors.New("websearch: rate limited")

// Depth selects Tavily's search depth.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Options tune a single search.
type Options struct {
	MaxResults    int   // 1..20; 0 means 5.
	Depth         Depth // Empty means basic.
	IncludeAnswer bool
}

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the subset of the Tavily response ventura uses.
type Response struct {
	Query        string   `json:"query"`
	Answer       string   `json:"answer,omitempty"`
	Results      []Result `json:"results"`
	ResponseTime float64  `json:"response_time"`
}

// Client calls the Tavily API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     *slog.Logger
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL; a nil
// limiter means no throttling.
func NewClient(baseURL, apiKey string, limiter ratelimit.Limiter, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		logger:  logger,
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   Depth  `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
	IncludeImages bool   `json:"include_images"`
}

// Search runs query against Tavily.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("websearch: empty query")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	opts.MaxResults = min(opts.MaxResults, maxMaxResults)
	switch opts.Depth {
	case "":
		opts.Depth = DepthBasic
	case DepthBasic, DepthAdvanced:
	default:
		return nil, fmt.Errorf("websearch: unknown depth %q", opts.Depth)
	}

	decision, err := c.limiter.Allow(ctx, limiterKey)
	if err != nil {
		c.logger.Warn("websearch: rate limiter error, allowing call", "error", err)
	} else if !decision.Allowed {
		return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, decision.RetryAfter.Round(time.Millisecond))
	}

	reqBody, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   opts.Depth,
		MaxResults:    opts.MaxResults,
		IncludeAnswer: opts.IncludeAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("websearch: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("websearch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("websearch: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("websearch: decode response: %w", err)
	}
	if result.Results == nil {
		result.Results = []Result{}
	}

	c.logger.Debug("websearch: search completed",
		"query", query, "results", len(result.Results), "duration", time.Since(start))
	return &result, nil
}
