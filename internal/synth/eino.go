package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// chatGenerator is the part of an eino chat model this package calls.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// OpenAICompleter talks to any OpenAI-compatible chat endpoint through eino.
type OpenAICompleter struct {
	chat  chatGenerator
	model string
}

func NewOpenAICompleter(ctx context.Context, apiKey, modelName, baseURL string) (*OpenAICompleter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultOpenAIModel
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("init openai chat model: %w", err)
	}
	return &OpenAICompleter{chat: cm, model: modelName}, nil
}

func (o *OpenAICompleter) ModelName() string { return o.model }

func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.chat.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("openai returned no message")
	}
	return stripCodeFences(resp.Content), nil
}
