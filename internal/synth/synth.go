// Package synth holds the language model providers used to write narrative
// findings, and the pacing and retry wrapper shared by all of them.
package synth

import (
	"context"
	"strings"
)

const systemPrompt = "You are a competitive intelligence analyst for the orthopedic medical device industry. " +
	"You write concise, evidence-based findings, cite the sources you are given, and do not invent facts."

const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultGeminiModel    = "gemini-2.5-flash"

	maxOutputTokens = 2048
)

// Completer is a single prompt to text call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
