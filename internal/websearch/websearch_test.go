package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/ventura/internal/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearch(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"query": "acme robotics funding",
			"answer": "Acme raised a seed round.",
			"results": [
				{"title": "Acme raises", "url": "https://example.com/acme", "content": "Seed round", "score": 0.91}
			],
			"response_time": 1.25
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "tvly-test", nil, discardLogger())
	resp, err := c.Search(context.Background(), "  acme robotics funding ", Options{MaxResults: 50, IncludeAnswer: true})
	require.NoError(t, err)

	assert.Equal(t, "acme robotics funding", got.Query)
	assert.Equal(t, "tvly-test", got.APIKey)
	assert.Equal(t, DepthBasic, got.SearchDepth)
	assert.Equal(t, maxMaxResults, got.MaxResults)
	assert.True(t, got.IncludeAnswer)
	assert.False(t, got.IncludeImages)

	assert.Equal(t, "Acme raised a seed round.", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com/acme", resp.Results[0].URL)
	assert.InDelta(t, 0.91, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 1.25, resp.ResponseTime, 1e-9)
}

func TestSearchDefaults(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"query":"q"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "k", nil, discardLogger()).Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxResults, got.MaxResults)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "bad", nil, discardLogger()).Search(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Less(t, len(err.Error()), 1100, "body must be truncated")
}

func TestSearchRejectsInput(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", nil, discardLogger())

	_, err := c.Search(context.Background(), "   ", Options{})
	assert.Error(t, err)

	_, err = c.Search(context.Background(), "q", Options{Depth: "deep"})
	assert.Error(t, err)
}

func TestSearchRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer func() { _ = limiter.Close() }()
	c := NewClient(server.URL, "k", limiter, discardLogger())

	_, err := c.Search(context.Background(), "first", Options{})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "second", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(server.URL, "k", nil, discardLogger()).Search(ctx, "q", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
