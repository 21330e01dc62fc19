package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tome/internal"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	if tryExternalCommand(ctx) {
		return
	}

	app := newApp()
	rootCmd := NewRootCmd(version, app)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "tome %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

// app wires commands to the engine. The constructor fields are seams so
// tests can swap the remote gateways for fakes.
type app struct {
	embedderFor func(cfg internal.EmbeddingConfig) (internal.Embedder, error)
	providerFor func(ctx context.Context, cfg internal.AnswerProviderConfig) (internal.Provider, error)
	streamerFor func(ctx context.Context, cfg internal.AnswerProviderConfig) (answerStreamer, error)
}

// answerStreamer delivers an answer as incremental text deltas.
type answerStreamer interface {
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

func newApp() *app {
	return &app{
		embedderFor: func(cfg internal.EmbeddingConfig) (internal.Embedder, error) {
			return internal.NewOpenAIEmbedder(cfg)
		},
		providerFor: func(ctx context.Context, cfg internal.AnswerProviderConfig) (internal.Provider, error) {
			return internal.NewFantasyProvider(ctx, cfg)
		},
		streamerFor: func(ctx context.Context, cfg internal.AnswerProviderConfig) (answerStreamer, error) {
			return internal.NewFantasyProvider(ctx, cfg)
		},
	}
}

func (a *app) loadConfig(cmd *cobra.Command) (*internal.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = internal.DefaultConfigPath()
	}
	return internal.LoadConfig(path)
}

// resolve loads the config and resolves the library root from the
// --library flag or the config.
func (a *app) resolve(cmd *cobra.Command) (*internal.Config, string, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	explicit, _ := cmd.Flags().GetString("library")
	return cfg, cfg.LibraryRoot(explicit), nil
}

func (a *app) newRegistry(cmd *cobra.Command) (*internal.Registry, error) {
	_, root, err := a.resolve(cmd)
	if err != nil {
		return nil, err
	}
	return internal.OpenLibrary(root), nil
}

func (a *app) newRetriever(cmd *cobra.Command) (*internal.Retriever, error) {
	cfg, root, err := a.resolve(cmd)
	if err != nil {
		return nil, err
	}

	factory := func(model string) (internal.Embedder, error) {
		embedCfg := cfg.Embeddings
		if model != "" {
			embedCfg.Model = model
		}
		return a.embedderFor(embedCfg)
	}

	retriever := internal.NewRetriever(internal.OpenLibrary(root), factory, cfg.Embeddings.Model)
	retriever.Warn = cmd.ErrOrStderr()
	return retriever, nil
}

func (a *app) newSynthesizer(cmd *cobra.Command) (*internal.Synthesizer, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	providers := make([]internal.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := a.providerFor(cmd.Context(), pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers = append(providers, provider)
	}

	return internal.NewSynthesizer(providers...), nil
}
