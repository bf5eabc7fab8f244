package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/JesseHenson/ortho-intel-sub001/internal/competitiveintel"
	"github.com/JesseHenson/ortho-intel-sub001/internal/replay"
	"github.com/JesseHenson/ortho-intel-sub001/internal/synth"
	"github.com/JesseHenson/ortho-intel-sub001/internal/websearch"
)

type settings struct {
	CatalogPath   string
	FailurePolicy string
	MarketShare   bool

	SearchProvider  string
	TavilyAPIKey    string
	SearXNGBaseURL  string
	SearchMax       int
	SearchRPM       int
	SearchTimeout   time.Duration
	FetchFullText   bool
	BreakerFailures int

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMRPM      int
	LLMBurst    int

	RecordPath string
	ReplayPath string

	OTLPEndpoint string
}

func setDefaults() {
	viper.SetDefault("research.failure_policy", string(competitiveintel.StopResearchOnFinalAttemptFailure))
	viper.SetDefault("research.market_share", true)
	viper.SetDefault("search.max_results", websearch.DefaultMaxResults)
	viper.SetDefault("search.rpm", 60)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.breaker_failures", 5)
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.rpm", 50)
	viper.SetDefault("llm.burst", 1)
}

// bindProviderEnv lets the search providers' conventional variables work
// without the prefix. LLM keys are resolved per provider in llmAPIKey.
func bindProviderEnv() {
	_ = viper.BindEnv("search.tavily.api_key", "ORTHO_INTEL_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY")
	_ = viper.BindEnv("search.searxng.base_url", "ORTHO_INTEL_SEARCH_SEARXNG_BASE_URL", "SEARXNG_BASE_URL")
	_ = viper.BindEnv("llm.api_key", "ORTHO_INTEL_LLM_API_KEY")
	_ = viper.BindEnv("telemetry.otlp_endpoint", "ORTHO_INTEL_TELEMETRY_OTLP_ENDPOINT")
}

func loadSettings() settings {
	return settings{
		CatalogPath:     viper.GetString("catalog"),
		FailurePolicy:   viper.GetString("research.failure_policy"),
		MarketShare:     viper.GetBool("research.market_share"),
		SearchProvider:  viper.GetString("search.provider"),
		TavilyAPIKey:    viper.GetString("search.tavily.api_key"),
		SearXNGBaseURL:  viper.GetString("search.searxng.base_url"),
		SearchMax:       viper.GetInt("search.max_results"),
		SearchRPM:       viper.GetInt("search.rpm"),
		SearchTimeout:   viper.GetDuration("search.timeout"),
		FetchFullText:   viper.GetBool("search.fetch_full_text"),
		BreakerFailures: viper.GetInt("search.breaker_failures"),
		LLMProvider:     viper.GetString("llm.provider"),
		LLMAPIKey:       llmAPIKey(viper.GetString("llm.provider"), viper.GetString("llm.api_key")),
		LLMModel:        viper.GetString("llm.model"),
		LLMBaseURL:      viper.GetString("llm.base_url"),
		LLMRPM:          viper.GetInt("llm.rpm"),
		LLMBurst:        viper.GetInt("llm.burst"),
		RecordPath:      viper.GetString("record"),
		ReplayPath:      viper.GetString("replay"),
		OTLPEndpoint:    viper.GetString("telemetry.otlp_endpoint"),
	}
}

// providerKeyEnv names the conventional key variable of each LLM provider.
var providerKeyEnv = map[string]string{
	"":          "ANTHROPIC_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// llmAPIKey returns the configured key, or else the conventional variable of
// the selected provider only. Another provider's key is never picked up.
func llmAPIKey(provider, configured string) string {
	if key := strings.TrimSpace(configured); key != "" {
		return key
	}
	env, ok := providerKeyEnv[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}

func loadCatalog(path string) (competitiveintel.Catalog, error) {
	if path == "" {
		return competitiveintel.DefaultCatalog(), nil
	}
	return competitiveintel.LoadCatalog(path)
}

// buildOrchestrator wires the collaborators. The returned cleanup closes any replay store.
func buildOrchestrator(ctx context.Context, s settings, log *logrus.Logger) (*competitiveintel.Orchestrator, func(), error) {
	cleanup := func() {}
	if s.RecordPath != "" && s.ReplayPath != "" {
		return nil, cleanup, errors.New("--record and --replay are mutually exclusive")
	}
	catalog, err := loadCatalog(s.CatalogPath)
	if err != nil {
		return nil, cleanup, err
	}
	policy, err := competitiveintel.ParseResearchFailurePolicy(s.FailurePolicy)
	if err != nil {
		return nil, cleanup, err
	}

	var (
		researcher  competitiveintel.WebResearcher
		synthesizer competitiveintel.Synthesizer
	)
	if s.ReplayPath != "" {
		store, err := replay.Open(s.ReplayPath)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { store.Close() }
		researcher = replay.NewSearcher(nil, store, replay.ModeReplay)
		synthesizer = replay.NewSynthesizer(nil, store, replay.ModeReplay)
		log.WithField("path", s.ReplayPath).Info("replaying recorded collaborator traffic")
	} else {
		backend, err := websearch.NewBackend(websearch.ProviderConfig{
			Provider:       s.SearchProvider,
			TavilyAPIKey:   s.TavilyAPIKey,
			SearXNGBaseURL: s.SearXNGBaseURL,
			Timeout:        s.SearchTimeout,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("search: %w", err)
		}
		client := websearch.NewClient(backend, websearch.ClientConfig{
			MaxResults:        s.SearchMax,
			RequestsPerMinute: s.SearchRPM,
			FetchFullText:     s.FetchFullText,
			BreakerThreshold:  s.BreakerFailures,
			Logger:            log,
		})
		llm, err := synth.New(ctx, synth.Config{
			Provider:          s.LLMProvider,
			APIKey:            s.LLMAPIKey,
			Model:             s.LLMModel,
			BaseURL:           s.LLMBaseURL,
			RequestsPerMinute: s.LLMRPM,
			Burst:             s.LLMBurst,
			Logger:            log,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("llm: %w", err)
		}
		researcher, synthesizer = client, llm
		if s.RecordPath != "" {
			store, err := replay.Open(s.RecordPath)
			if err != nil {
				return nil, cleanup, err
			}
			cleanup = func() { store.Close() }
			researcher = replay.NewSearcher(client, store, replay.ModeRecord)
			synthesizer = replay.NewSynthesizer(llm, store, replay.ModeRecord)
			log.WithField("path", s.RecordPath).Info("recording collaborator traffic")
		}
	}

	orch, err := competitiveintel.NewOrchestrator(catalog, researcher, synthesizer, competitiveintel.Options{
		FailurePolicy:      policy,
		DisableMarketShare: !s.MarketShare,
		Logger:             log,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return orch, cleanup, nil
}
