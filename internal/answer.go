package internal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider is one external answer-generation service.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnswerResponse is the success payload of a synthesis request.
type AnswerResponse struct {
	Answer          string `json:"answer"`
	ProviderUsed    string `json:"provider_used"`
	ModelUsed       string `json:"model_used"`
	ChunksProcessed int    `json:"chunks_processed"`
	Query           string `json:"query"`
	Status          string `json:"status"`
}

// AnswerFailure is returned as the error when every provider in the chain
// fails. Details holds one message per attempted provider, in call order.
type AnswerFailure struct {
	Err            string   `json:"error"`
	Details        []string `json:"details"`
	Query          string   `json:"query"`
	ChunksProvided int      `json:"chunks_provided"`
}

func (f *AnswerFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Err, strings.Join(f.Details, "; "))
}

const defaultAttemptTimeout = 60 * time.Second

// Synthesizer tries an ordered list of providers until one produces an
// answer. Attempts are strictly sequential, one per provider per request;
// the first success wins and later providers are never called. If every
// provider fails the result is an AnswerFailure, never a partial answer.
type Synthesizer struct {
	providers []Provider

	// AttemptTimeout bounds each provider call. Expiry counts as that
	// provider's failure and advances the chain.
	AttemptTimeout time.Duration
}

// NewSynthesizer builds a synthesizer over the given provider order.
func NewSynthesizer(providers ...Provider) *Synthesizer {
	return &Synthesizer{
		providers:      providers,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

// Answer builds a prompt from the ranked excerpts and the question and runs
// the provider chain.
func (s *Synthesizer) Answer(ctx context.Context, query string, excerpts []string) (*AnswerResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	clean := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		if trimmed := strings.TrimSpace(e); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoExcerpts
	}
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	prompt := BuildAnswerPrompt(query, clean)

	details := make([]string, 0, len(s.providers))
	for _, provider := range s.providers {
		if err := ctx.Err(); err != nil {
			details = append(details, fmt.Sprintf("%s failed: %v", provider.Name(), err))
			break
		}

		answer, err := s.attempt(ctx, provider, prompt)
		if err != nil {
			details = append(details, fmt.Sprintf("%s failed: %v", provider.Name(), err))
			continue
		}

		return &AnswerResponse{
			Answer:          answer,
			ProviderUsed:    provider.Name(),
			ModelUsed:       provider.Model(),
			ChunksProcessed: len(clean),
			Query:           query,
			Status:          "success",
		}, nil
	}

	return nil, &AnswerFailure{
		Err:            "all answer providers failed",
		Details:        details,
		Query:          query,
		ChunksProvided: len(clean),
	}
}

func (s *Synthesizer) attempt(ctx context.Context, provider Provider, prompt string) (string, error) {
	timeout := s.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := provider.Complete(attemptCtx, prompt)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}
	return answer, nil
}

// Providers exposes the configured chain in call order.
func (s *Synthesizer) Providers() []Provider { return s.providers }

// BuildAnswerPrompt embeds the ranked excerpts and the question into the
// tutor prompt sent to every provider.
func BuildAnswerPrompt(query string, excerpts []string) string {
	var sb strings.Builder
	for i, e := range excerpts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %q", i+1, e)
	}

	return fmt.Sprintf(`You are an expert tutor helping students understand concepts directly from their textbooks.

Instructions: Based only on the following textbook excerpts, answer the user's question in a clear, structured, and detailed manner.

Do not use any external knowledge or assumptions.

Ensure the explanation is accurate and easy to understand for a college student.

Use examples, analogies, or subheadings where appropriate to improve clarity.

If the answer is not present in the excerpts, respond with: "The provided excerpts do not contain enough information to answer this question."

Textbook Excerpts:
%s

User Question:
%s

Answer:`, sb.String(), query)
}
