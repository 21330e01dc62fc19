package internal

import (
	"context"
	"fmt"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into fixed-dimension vectors. One embedder serves one
// model; a collection records which model built it and queries must go
// through the same one. Batch boundaries never affect the produced vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// EmbeddingConfig configures the remote embedding gateway.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. The base
// URL is configurable, so the same client covers OpenAI, Together, and any
// other compatible gateway.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string

	mu  sync.Mutex // guards dim, learned lazily under concurrent batches
	dim int
}

// NewOpenAIEmbedder builds an embedder for the configured model. The API key
// is read from the configured environment variable (OPENAI_API_KEY by
// default).
func NewOpenAIEmbedder(cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key: set %s", keyEnv)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model must be configured")
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dim:    cfg.Dimension,
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension returns the vector dimension, 0 until the first embedding has
// been produced when not configured up front.
func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// Embed returns the vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings response: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		vecs[d.Index] = vec
	}

	for i, vec := range vecs {
		if vec == nil {
			return nil, fmt.Errorf("embeddings response: missing vector for input %d", i)
		}
		if err := e.checkDimension(len(vec)); err != nil {
			return nil, err
		}
	}

	return vecs, nil
}

// checkDimension learns the dimension from the first vector seen and rejects
// any later vector that disagrees. Safe for concurrent batches.
func (e *OpenAIEmbedder) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = n
	}
	if n != e.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, e.dim, n)
	}
	return nil
}
