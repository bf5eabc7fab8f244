package synth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"
)

// mockMessager implements AnthropicMessager for testing.
type mockMessager struct {
	params   anthropic.MessageNewParams
	response *anthropic.Message
	err      error
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func TestAnthropicComplete(t *testing.T) {
	mock := &mockMessager{response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "```markdown\nGlobus leads "},
		{Type: "tool_use"},
		{Type: "text", Text: "the lumbar segment.\n```"},
	}}}
	defer withMockClient(mock)()

	c, err := NewAnthropicCompleter("key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnthropicModel, c.ModelName())

	got, err := c.Complete(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "Globus leads the lumbar segment.", got)
	assert.EqualValues(t, maxOutputTokens, mock.params.MaxTokens)
	require.Len(t, mock.params.System, 1)
	assert.Equal(t, systemPrompt, mock.params.System[0].Text)
}

func TestAnthropicRequiresKey(t *testing.T) {
	_, err := NewAnthropicCompleter(" ", "")
	assert.Error(t, err)
}

type fakeChat struct {
	input []*schema.Message
	resp  *schema.Message
	err   error
}

func (f *fakeChat) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.resp, f.err
}

func TestOpenAIComplete(t *testing.T) {
	chat := &fakeChat{resp: &schema.Message{Role: schema.Assistant, Content: "  Stryker is growing.  "}}
	c := &OpenAICompleter{chat: chat, model: "gpt-test"}

	got, err := c.Complete(context.Background(), "assess")
	require.NoError(t, err)
	assert.Equal(t, "Stryker is growing.", got)
	require.Len(t, chat.input, 2)
	assert.Equal(t, schema.System, chat.input[0].Role)
	assert.Equal(t, "assess", chat.input[1].Content)

	c.chat = &fakeChat{}
	_, err = c.Complete(context.Background(), "assess")
	assert.Error(t, err)
}

func TestGeminiComplete(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	c := &GeminiCompleter{model: "gemini-test", generate: func(_ context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		assert.Equal(t, "gemini-test", modelName)
		require.Len(t, contents, 1)
		assert.Equal(t, "assess", contents[0].Parts[0].Text)
		gotConfig = config
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Niche player "}, {Text: "in biologics."}}},
		}}}, nil
	}}

	got, err := c.Complete(context.Background(), "assess")
	require.NoError(t, err)
	assert.Equal(t, "Niche player in biologics.", got)
	assert.EqualValues(t, maxOutputTokens, gotConfig.MaxOutputTokens)

	c.generate = func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}
	_, err = c.Complete(context.Background(), "assess")
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "plain", stripCodeFences("  plain \n"))
	assert.Equal(t, "body", stripCodeFences("```\nbody\n```"))
	assert.Equal(t, "body", stripCodeFences("```text\nbody```"))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewDefaultsToAnthropic(t *testing.T) {
	defer withMockClient(&mockMessager{})()
	p, err := New(context.Background(), Config{APIKey: "k", Model: "claude-test"})
	require.NoError(t, err)
	assert.Equal(t, "claude-test", p.ModelName())
}

type scripted struct {
	calls   int
	replies []func() (string, error)
}

func (s *scripted) ModelName() string { return "scripted" }

func (s *scripted) Complete(context.Context, string) (string, error) {
	r := s.replies[s.calls]
	s.calls++
	return r()
}

func reply(text string, err error) func() (string, error) {
	return func() (string, error) { return text, err }
}

func newTestPaced(next Completer) *Paced {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewPaced(next, PacedConfig{Logger: l, RetryDelay: time.Millisecond})
}

func TestPacedRetriesTransientFailures(t *testing.T) {
	next := &scripted{replies: []func() (string, error){
		reply("", errors.New("POST /v1/messages: status code: 529 overloaded")),
		reply("   ", nil),
		reply("final answer", nil),
	}}
	p := newTestPaced(next)

	got, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "final answer", got)
	assert.Equal(t, 3, next.calls)
}

func TestPacedDoesNotRetryClientErrors(t *testing.T) {
	next := &scripted{replies: []func() (string, error){
		reply("", errors.New("status code: 401 unauthorized")),
	}}
	p := newTestPaced(next)

	_, err := p.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errPermanent)
	assert.Contains(t, err.Error(), "401 unauthorized")
	assert.Equal(t, 1, next.calls)
}

func TestPacedGivesUpAfterMaxAttempts(t *testing.T) {
	next := &scripted{replies: []func() (string, error){
		reply("", nil), reply("", nil), reply("", nil),
	}}
	p := newTestPaced(next)

	_, err := p.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.ErrorIs(t, err, errEmptyResponse)
	assert.Equal(t, 3, next.calls)
}

func TestPacedStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := &scripted{replies: []func() (string, error){
		func() (string, error) { cancel(); return "", context.Canceled },
		reply("never", nil),
	}}
	p := newTestPaced(next)

	_, err := p.Complete(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		err  error
		want failureClass
	}{
		{nil, failureNone},
		{context.DeadlineExceeded, failureTimeout},
		{errors.New("status code: 429 too many"), failureRateLimit},
		{errors.New("status=503"), failureServer},
		{errors.New("status 400 bad request"), failureClient},
		{errors.New("upstream overloaded"), failureRateLimit},
		{errors.New("connection reset"), failureServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyTransportError(tt.err), "%v", tt.err)
	}
}
