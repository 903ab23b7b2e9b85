package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to any OpenAI-compatible chat-completion endpoint
// (OpenAI itself, Groq).
type OpenAIProvider struct {
	name   string
	opts   Options
	client openai.Client
}

// NewOpenAIProvider creates a provider. An empty BaseURL keeps the SDK default.
func NewOpenAIProvider(name string, opts Options) *OpenAIProvider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.Retries),
		option.WithHTTPClient(&http.Client{Timeout: opts.timeout()}),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAIProvider{
		name:   name,
		opts:   opts,
		client: openai.NewClient(reqOpts...),
	}
}

// Name returns the configured provider name.
func (o *OpenAIProvider) Name() string {
	return o.name
}

// Generate sends one system+user exchange and returns the first choice.
func (o *OpenAIProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(o.opts.Temperature),
		MaxTokens:   openai.Int(int64(o.opts.maxTokens())),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: o.name, Code: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("%s API error: %w", o.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", o.name)
	}
	return resp.Choices[0].Message.Content, nil
}
