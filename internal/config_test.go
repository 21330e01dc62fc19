package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embeddings.APIKeyEnv)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "together.ai", cfg.Providers[0].Name)
	assert.Equal(t, "openai", cfg.Providers[0].Kind)
	assert.Equal(t, "https://api.together.xyz/v1", cfg.Providers[0].BaseURL)
	assert.Equal(t, "openrouter", cfg.Providers[1].Name)
	assert.Equal(t, "openrouter", cfg.Providers[1].Kind)
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Library = "/srv/tome/library"
	cfg.Embeddings.BaseURL = "https://example.test/v1"
	cfg.Providers = append(cfg.Providers, AnswerProviderConfig{
		Name:      "claude",
		Kind:      "anthropic",
		Model:     "claude-3-5-haiku-latest",
		APIKeyEnv: "ANTHROPIC_API_KEY",
	})

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{unclosed"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLibraryRootPrecedence(t *testing.T) {
	cfg := &Config{Library: "/from/config"}

	assert.Equal(t, "/explicit/flag", cfg.LibraryRoot("/explicit/flag"))
	assert.Equal(t, "/from/config", cfg.LibraryRoot(""))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	empty := &Config{}
	assert.Equal(t, filepath.Join(home, ".tome", "library"), empty.LibraryRoot(""))
}
