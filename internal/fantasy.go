package internal

import (
	"context"
	"fmt"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

// AnswerProviderConfig describes one entry of the answer-provider chain.
// Kind "openai" covers any OpenAI-compatible endpoint via BaseURL (Together,
// self-hosted gateways); "openrouter" and "anthropic" are first-class.
type AnswerProviderConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

func (c AnswerProviderConfig) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

var _ Provider = (*FantasyProvider)(nil)

// FantasyProvider backs the Provider interface with a fantasy language
// model.
type FantasyProvider struct {
	model   fantasy.LanguageModel
	name    string
	modelID string
}

// NewFantasyProvider connects to the configured provider and resolves its
// language model.
func NewFantasyProvider(ctx context.Context, cfg AnswerProviderConfig) (*FantasyProvider, error) {
	key := cfg.apiKey()

	var provider fantasy.Provider
	var err error

	switch cfg.Kind {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(key)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider kind: %q", cfg.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Kind
	}

	return &FantasyProvider{
		model:   model,
		name:    name,
		modelID: cfg.Model,
	}, nil
}

func (p *FantasyProvider) Name() string  { return p.name }
func (p *FantasyProvider) Model() string { return p.modelID }

// Complete generates a single answer for the prompt.
func (p *FantasyProvider) Complete(ctx context.Context, prompt string) (string, error) {
	agent := fantasy.NewAgent(p.model)

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return result.Response.Content.Text(), nil
}

// Stream generates an answer and delivers text deltas on the returned
// channel as they arrive. The chain semantics of the Synthesizer do not
// apply here; streaming always talks to a single provider.
func (p *FantasyProvider) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	agent := fantasy.NewAgent(p.model)

	ch := make(chan string, 100)

	go func() {
		defer close(ch)

		_, err := agent.Stream(ctx, fantasy.AgentStreamCall{
			Prompt: prompt,
			OnTextDelta: func(_, text string) error {
				if text != "" {
					ch <- text
				}
				return nil
			},
		})
		if err != nil {
			ch <- fmt.Sprintf("\n[error: %v]", err)
		}
	}()

	return ch, nil
}
