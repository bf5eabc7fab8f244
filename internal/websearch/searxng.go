package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SearXNGConfig struct {
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
	HTTPClient  *http.Client
}

// SearXNGClient queries a self-hosted SearXNG instance with the JSON output format enabled.
type SearXNGClient struct {
	base  *url.URL
	retry httpRetrier
}

var _ Searcher = (*SearXNGClient)(nil)

func NewSearXNGClient(cfg SearXNGConfig) (*SearXNGClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("searxng base url is missing")
	}
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid searxng base url: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SearXNGClient{
		base:  u,
		retry: newHTTPRetrier("searxng", cfg.HTTPClient, cfg.MaxAttempts, cfg.RetryDelay),
	}, nil
}

type searxngResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"publishedDate"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

func (c *SearXNGClient) Search(ctx context.Context, req *Request) (*Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/search"
	q := u.Query()
	q.Set("q", req.Query)
	q.Set("format", "json")
	if req.Topic == "news" {
		q.Set("categories", "news")
	} else {
		q.Set("categories", "general")
	}
	u.RawQuery = q.Encode()

	raw, err := c.retry.do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed searxngResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	out := &Response{}
	for _, r := range parsed.Results {
		if len(out.Results) == limit {
			break
		}
		out.Results = append(out.Results, Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return out, nil
}
