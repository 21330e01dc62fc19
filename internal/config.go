package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application-level configuration: where the library lives,
// how queries are embedded, and which answer providers to try, in order.
type Config struct {
	Library    string                 `yaml:"library,omitempty"`
	Embeddings EmbeddingConfig        `yaml:"embeddings"`
	Providers  []AnswerProviderConfig `yaml:"providers,omitempty"`
}

// DefaultConfig mirrors the stack the project was built against: OpenAI
// embeddings, then a Together-then-OpenRouter answer chain.
func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: defaultBatchSize,
		},
		Providers: []AnswerProviderConfig{
			{
				Name:      "together.ai",
				Kind:      "openai",
				Model:     "mistralai/Mistral-7B-Instruct-v0.1",
				BaseURL:   "https://api.together.xyz/v1",
				APIKeyEnv: "TOGETHER_API_KEY",
			},
			{
				Name:      "openrouter",
				Kind:      "openrouter",
				Model:     "mistralai/mistral-7b-instruct",
				APIKeyEnv: "OPENROUTER_API_KEY",
			},
		},
	}
}

// LoadConfig reads the config file at path, falling back to DefaultConfig
// when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// DefaultConfigPath is ~/.tome/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tome", "config.yaml")
	}
	return filepath.Join(home, ".tome", "config.yaml")
}

// LibraryRoot resolves the library directory: an explicit flag value wins,
// then the configured library, then ~/.tome/library.
func (c *Config) LibraryRoot(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.Library != "" {
		return c.Library
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tome", "library")
	}
	return filepath.Join(home, ".tome", "library")
}
