package internal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns canned vectors by text, falling back to a
// deterministic filler so any text embeds to something of the right
// dimension.
type fakeEmbedder struct {
	dim     int
	model   string
	vectors map[string][]float32
	err     error

	mu    sync.Mutex
	calls int
}

func newFakeEmbedder(dim int, vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, model: "fake-embed", vectors: vectors}
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if canned, ok := e.vectors[text]; ok {
			vec := make([]float32, len(canned))
			copy(vec, canned)
			out[i] = vec
			continue
		}
		vec := make([]float32, e.dim)
		for j := range vec {
			vec[j] = float32((len(text)+j)%7) + 1
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int { return e.dim }
func (e *fakeEmbedder) Model() string  { return e.model }

// fakeProvider is a scriptable answer provider.
type fakeProvider struct {
	name   string
	model  string
	answer string
	err    error
	delay  time.Duration
	calls  int
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Model() string { return p.model }

func (p *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return "", p.err
	}
	return p.answer, nil
}

var errFakeNetwork = errors.New("connection refused")

func rawChunks(t *testing.T, chunks []map[string]any) []json.RawMessage {
	t.Helper()
	raw := make([]json.RawMessage, len(chunks))
	for i, chunk := range chunks {
		data, err := json.Marshal(chunk)
		require.NoError(t, err)
		raw[i] = data
	}
	return raw
}

// buildTestCollection writes a three-chunk collection with known vectors
// into fs under the given id.
func buildTestCollection(t *testing.T, fs billy.Filesystem, id string, metric Metric) *fakeEmbedder {
	t.Helper()

	embedder := newFakeEmbedder(3, map[string][]float32{
		"alpha is the first concept": {1, 0, 0},
		"beta is the second concept": {0, 1, 0},
		"gamma is the third concept": {0, 0, 1},
		"alpha":                      {1, 0, 0},
		"beta":                       {0, 1, 0},
		"gamma":                      {0, 0, 1},
		"between alpha and beta":     {0.7, 0.7, 0},
	})

	raw := rawChunks(t, []map[string]any{
		{"id": id + "-0", "text": "alpha is the first concept", "source_file": id + ".pdf"},
		{"id": id + "-1", "text": "beta is the second concept", "chapter": "2"},
		{"id": id + "-2", "text": "gamma is the third concept", "section": "3.1"},
	})

	_, err := BuildCollection(context.Background(), fs, raw, embedder, BuildOptions{
		ID:     id,
		Name:   "Textbook " + id,
		Metric: metric,
	})
	require.NoError(t, err)
	return embedder
}
