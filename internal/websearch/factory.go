package websearch

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ProviderConfig struct {
	Provider       string // tavily or searxng
	TavilyAPIKey   string
	SearXNGBaseURL string
	Timeout        time.Duration
}

// NewBackend builds the provider backend. With no provider named, Tavily is
// chosen when a key is present and SearXNG when a base url is.
func NewBackend(cfg ProviderConfig) (Searcher, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		switch {
		case cfg.TavilyAPIKey != "":
			provider = "tavily"
		case cfg.SearXNGBaseURL != "":
			provider = "searxng"
		default:
			return nil, fmt.Errorf("search provider not configured")
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	switch provider {
	case "tavily":
		return NewTavilyClient(TavilyConfig{APIKey: cfg.TavilyAPIKey, HTTPClient: hc})
	case "searxng":
		return NewSearXNGClient(SearXNGConfig{BaseURL: cfg.SearXNGBaseURL, HTTPClient: hc})
	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
