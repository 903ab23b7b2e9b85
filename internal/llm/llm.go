package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/AINewsletter/internal/config"
)

const defaultTimeout = 30 * time.Second

// Provider is the interface for chat-completion providers.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Options holds the fixed request configuration shared by every provider.
type Options struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retries     int
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 1024
	}
	return o.MaxTokens
}

// StatusError is returned when a provider answers with a non-success HTTP status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API returned %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, e.Body)
}

type providerDefaults struct {
	model     string
	baseURL   string
	apiKeyEnv string
}

var defaults = map[string]providerDefaults{
	"groq":      {model: "llama3-8b-8192", baseURL: "https://api.groq.com/openai/v1/", apiKeyEnv: "GROQ_API_KEY"},
	"openai":    {model: "gpt-4o-mini", apiKeyEnv: "OPENAI_API_KEY"},
	"anthropic": {model: "claude-3-5-haiku-latest", apiKeyEnv: "ANTHROPIC_API_KEY"},
	"ollama":    {model: "llama3", baseURL: "http://localhost:11434"},
}

// ModelFor returns the configured model, or the provider's default when none
// is set.
func ModelFor(cfg config.Summarization) string {
	return firstNonEmpty(cfg.Model, defaults[strings.ToLower(cfg.Provider)].model)
}

// CreateProvider creates an LLM provider based on configuration. It fails
// before any network call when the provider's API key is not set.
func CreateProvider(cfg config.Summarization) (Provider, error) {
	name := strings.ToLower(cfg.Provider)
	d, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown summarization provider %q", cfg.Provider)
	}

	opts := Options{
		Model:       ModelFor(cfg),
		BaseURL:     firstNonEmpty(cfg.BaseURL, d.baseURL),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		Retries:     cfg.Retries,
	}

	if keyEnv := firstNonEmpty(cfg.APIKeyEnv, d.apiKeyEnv); keyEnv != "" && name != "ollama" {
		key, err := config.RequireEnv(keyEnv, name+" API key")
		if err != nil {
			return nil, err
		}
		opts.APIKey = key
	}

	var p Provider
	switch name {
	case "anthropic":
		p = NewAnthropicProvider(opts)
	case "ollama":
		p = NewOllamaProvider(opts)
	default:
		p = NewOpenAIProvider(name, opts)
	}
	log.Printf("Using %s with model: %s", p.Name(), opts.Model)
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
