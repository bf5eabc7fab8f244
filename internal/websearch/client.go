package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientConfig tunes the Client wrapped around a provider backend.
type ClientConfig struct {
	MaxResults        int
	Topic             string
	RequestsPerMinute int
	Burst             int

	// FetchFullText replaces snippets shorter than MinContentChars with the
	// readable text of the page.
	FetchFullText   bool
	MinContentChars int
	FetchTimeout    time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	Logger logrus.FieldLogger
}

// FullTextFetcher returns the readable text of the page at url.
type FullTextFetcher func(url string, timeout time.Duration) (string, error)

func readabilityFetcher(url string, timeout time.Duration) (string, error) {
	article, err := readability.FromURL(url, timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

// Client is the search entry point used by the analysis pipeline. It caps the
// hit count and paces calls across runs, and stops calling a failing provider
// until the breaker cools down.
type Client struct {
	backend Searcher
	cfg     ClientConfig
	limiter *rate.Limiter
	breaker circuitbreaker.CircuitBreaker[*Response]
	fetch   FullTextFetcher
	log     logrus.FieldLogger
}

func NewClient(backend Searcher, cfg ClientConfig) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Topic == "" {
		cfg.Topic = "general"
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = 200
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Client{
		backend: backend,
		cfg:     cfg,
		fetch:   readabilityFetcher,
		log:     logger.WithField("component", "websearch"),
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	threshold := uint32(cfg.BreakerThreshold) // #nosec G115 -- positive, checked above
	c.breaker = circuitbreaker.New[*Response](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    cfg.BreakerCooldown,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	return c
}

// WithFetcher swaps the full text fetcher.
func (c *Client) WithFetcher(f FullTextFetcher) *Client {
	c.fetch = f
	return c
}

func (c *Client) BreakerState() string { return c.breaker.State().String() }

// Search runs query and returns at most MaxResults hits.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("search rate limit wait: %w", err)
		}
	}
	start := time.Now()
	resp, err := c.breaker.Execute(ctx, func(ctx context.Context) (*Response, error) {
		return c.backend.Search(ctx, &Request{
			Query:             query,
			Topic:             c.cfg.Topic,
			MaxResults:        c.cfg.MaxResults,
			IncludeRawContent: c.cfg.FetchFullText,
		})
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"query": query, "breaker": c.BreakerState()}).WithError(err).Debug("search_backend_failed")
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	results := resp.Results
	if len(results) > c.cfg.MaxResults {
		results = results[:c.cfg.MaxResults]
	}
	results = append([]Result(nil), results...)
	if c.cfg.FetchFullText {
		c.enrich(results)
	}
	c.log.WithFields(logrus.Fields{"query": query, "hits": len(results), "elapsed_ms": time.Since(start).Milliseconds()}).Debug("search_ok")
	return results, nil
}

// enrich is best effort; a page that cannot be fetched keeps its snippet.
func (c *Client) enrich(results []Result) {
	for i := range results {
		r := &results[i]
		if r.RawContent != "" && len(r.Content) < c.cfg.MinContentChars {
			r.Content = r.RawContent
			continue
		}
		if len(r.Content) >= c.cfg.MinContentChars || r.URL == "" {
			continue
		}
		text, err := c.fetch(r.URL, c.cfg.FetchTimeout)
		if err != nil {
			c.log.WithField("url", r.URL).WithError(err).Debug("full_text_fetch_failed")
			continue
		}
		if len(text) > len(r.Content) {
			r.Content = text
		}
	}
}
