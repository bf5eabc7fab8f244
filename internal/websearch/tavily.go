package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const TavilyBaseURL = "https://api.tavily.com/search"

type TavilyConfig struct {
	APIKey      string
	BaseURL     string
	SearchDepth string // basic or advanced
	MaxAttempts int
	RetryDelay  time.Duration // first backoff, doubled per retry
	HTTPClient  *http.Client
}

type TavilyClient struct {
	cfg   TavilyConfig
	retry httpRetrier
}

var _ Searcher = (*TavilyClient)(nil)

func NewTavilyClient(cfg TavilyConfig) (*TavilyClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("tavily api key is missing")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = TavilyBaseURL
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
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
	return &TavilyClient{
		cfg:   cfg,
		retry: newHTTPRetrier("tavily", cfg.HTTPClient, cfg.MaxAttempts, cfg.RetryDelay),
	}, nil
}

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	Topic             string `json:"topic,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, req *Request) (*Response, error) {
	body := tavilyRequest{
		Query:             req.Query,
		SearchDepth:       c.cfg.SearchDepth,
		Topic:             req.Topic,
		MaxResults:        req.MaxResults,
		IncludeRawContent: req.IncludeRawContent,
	}
	if body.Topic == "" {
		body.Topic = "general"
	}
	if body.MaxResults <= 0 {
		body.MaxResults = DefaultMaxResults
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	raw, err := c.retry.do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	out := &Response{Results: make([]Result, 0, len(parsed.Results))}
	for _, r := range parsed.Results {
		out.Results = append(out.Results, Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			RawContent:    r.RawContent,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return out, nil
}
