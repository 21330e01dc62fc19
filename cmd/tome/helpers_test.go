package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"

	"tome/internal"
)

type cliEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (e *cliEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *cliEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if canned, ok := e.vectors[text]; ok {
			out[i] = canned
			continue
		}
		vec := make([]float32, e.dim)
		for j := range vec {
			vec[j] = float32((len(text)+j)%5) + 1
		}
		out[i] = vec
	}
	return out, nil
}

func (e *cliEmbedder) Dimension() int { return e.dim }
func (e *cliEmbedder) Model() string  { return "fake-embed" }

type cliProvider struct {
	name   string
	answer string
	err    error
}

func (p *cliProvider) Name() string  { return p.name }
func (p *cliProvider) Model() string { return "fake-model" }

func (p *cliProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.answer, nil
}

type cliStreamer struct {
	deltas []string
}

func (s *cliStreamer) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	ch := make(chan string, len(s.deltas))
	for _, d := range s.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func newTestApp(provider internal.Provider) *app {
	embedder := &cliEmbedder{dim: 3, vectors: map[string][]float32{
		"alpha is the first concept": {1, 0, 0},
		"beta is the second concept": {0, 1, 0},
		"gamma is the third concept": {0, 0, 1},
		"alpha":                      {1, 0, 0},
		"beta":                       {0, 1, 0},
	}}

	return &app{
		embedderFor: func(cfg internal.EmbeddingConfig) (internal.Embedder, error) {
			return embedder, nil
		},
		providerFor: func(ctx context.Context, cfg internal.AnswerProviderConfig) (internal.Provider, error) {
			if provider == nil {
				return nil, errors.New("no provider configured for test")
			}
			return provider, nil
		},
		streamerFor: func(ctx context.Context, cfg internal.AnswerProviderConfig) (answerStreamer, error) {
			return &cliStreamer{deltas: []string{"Alpha ", "is ", "first."}}, nil
		},
	}
}

// buildTestLibrary persists one collection under dir and returns the
// standard persistent flags pointing at it.
func buildTestLibrary(t *testing.T, dir, id string) []string {
	t.Helper()

	embedder := &cliEmbedder{dim: 3, vectors: map[string][]float32{
		"alpha is the first concept": {1, 0, 0},
		"beta is the second concept": {0, 1, 0},
		"gamma is the third concept": {0, 0, 1},
	}}

	raw := make([]json.RawMessage, 0, 3)
	for i, text := range []string{
		"alpha is the first concept",
		"beta is the second concept",
		"gamma is the third concept",
	} {
		data, err := json.Marshal(map[string]any{
			"id":   id + "-" + string(rune('0'+i)),
			"text": text,
		})
		if err != nil {
			t.Fatalf("marshal chunk: %v", err)
		}
		raw = append(raw, data)
	}

	_, err := internal.BuildCollection(context.Background(), osfs.New(dir), raw, embedder, internal.BuildOptions{
		ID:   id,
		Name: "Textbook " + id,
	})
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}

	return libraryFlags(t, dir)
}

func libraryFlags(t *testing.T, dir string) []string {
	t.Helper()
	return []string{
		"--library", dir,
		"--config", filepath.Join(dir, "no-config.yaml"),
	}
}

func runCLI(t *testing.T, a *app, args []string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd("test", a)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
