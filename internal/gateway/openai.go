package gateway

import (
	"context"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

// OpenAICompleter implements Completer against the OpenAI chat
// completions API.
type OpenAICompleter struct {
	Model   string
	BaseURL string
	// HTTPClient is optional; the library default is used when nil.
	// No request timeout is applied here, callers bound calls with ctx.
	HTTPClient openai.HTTPDoer
}

func NewOpenAICompleter(model, baseURL string) *OpenAICompleter {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAICompleter{Model: model, BaseURL: baseURL}
}

func (c *OpenAICompleter) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

// Complete sends one system and one user message and returns the content
// of the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, apiKey string, comp Completion) (string, error) {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}

	resp, err := c.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: comp.System},
			{Role: openai.ChatMessageRoleUser, Content: comp.User},
		},
		Temperature: wireTemperature(comp.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// The request field is omitempty, so a literal zero would be dropped and
// the server default used instead.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
