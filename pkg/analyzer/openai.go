package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIDefaultBase  = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-3.5-turbo"
	xaiDefaultBase     = "https://api.x.ai/v1"
	xaiDefaultModel    = "grok-3"
)

// openAICompleter talks to OpenAI and to OpenAI-compatible endpoints (xAI).
type openAICompleter struct {
	name   string
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAICompleter builds a chat completion backend. provider selects the
// default endpoint and model when baseURL or model are empty.
func NewOpenAICompleter(provider, apiKey, baseURL, model string, timeout time.Duration) Completer {
	if provider == "" {
		provider = ProviderOpenAI
	}
	defBase, defModel := openAIDefaultBase, openAIDefaultModel
	if provider == ProviderXAI {
		defBase, defModel = xaiDefaultBase, xaiDefaultModel
	}
	if baseURL == "" {
		baseURL = defBase
	}
	if model == "" {
		model = defModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := openai.NewClient(opts...)

	return &openAICompleter{
		name:   provider,
		client: &client,
		model:  openai.ChatModel(model),
	}
}

func (c *openAICompleter) Name() string { return c.name }

func (c *openAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
