// Package llm provides pluggable language model completion clients.
package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/resume-interviewer/config"
)

// Client completes a fully rendered prompt. Transient failures (network,
// quota) surface as errors; callers decide whether to retry.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Model       string
	Temperature float32

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewClient selects a completion provider from configuration.
func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai llm provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}
