package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Provider          string // anthropic, openai or gemini
	APIKey            string
	Model             string
	BaseURL           string // openai-compatible endpoints only
	RequestsPerMinute int
	Burst             int
	Logger            logrus.FieldLogger
}

// New builds the configured provider wrapped in Paced.
func New(ctx context.Context, cfg Config) (*Paced, error) {
	var (
		c   Completer
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "anthropic":
		c, err = NewAnthropicCompleter(cfg.APIKey, cfg.Model)
	case "openai":
		c, err = NewOpenAICompleter(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "gemini":
		c, err = NewGeminiCompleter(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewPaced(c, PacedConfig{RequestsPerMinute: cfg.RequestsPerMinute, Burst: cfg.Burst, Logger: cfg.Logger}), nil
}
