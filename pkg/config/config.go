// Package config loads and persists the tool's configuration: provider and
// model declarations, cascade toggles, and retry budgets. Configuration is a
// JSON file under the dot-directory in the user's home; API keys live in a
// separate file so the config itself can be shared freely.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ConfigVersion   = "1.0"
	ConfigDirName   = ".planweaver"
	ConfigFileName  = "config.json"
	APIKeysFileName = "api_keys.json"
)

// ModelConfig declares one model a provider serves.
type ModelConfig struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities,omitempty"`
	FreeTier     bool     `json:"free_tier,omitempty"`
}

// ProviderConfig declares one backend and the models to consider from it.
type ProviderConfig struct {
	ID      string        `json:"id"`
	BaseURL string        `json:"base_url,omitempty"`
	Models  []ModelConfig `json:"models"`
}

// Config is the persisted application configuration.
type Config struct {
	Version   string           `json:"version"`
	Providers []ProviderConfig `json:"providers"`

	// Cascade toggles.
	AllowWeakModels  bool `json:"allow_weak_models,omitempty"`
	StreamingEnabled bool `json:"streaming_enabled"`
	ExcludeFree      bool `json:"exclude_free,omitempty"`

	// Retry budgets and limits. Zero values fall back to the
	// orchestrator's defaults.
	ValidationRetries int     `json:"validation_retries,omitempty"`
	EmptyRetries      int     `json:"empty_retries,omitempty"`
	BudgetTokens      int     `json:"budget_tokens,omitempty"`
	CallTimeoutSec    int     `json:"call_timeout_sec,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`

	// RequestsPerSecond paces HTTP providers client-side. Zero disables
	// pacing.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
}

// NewConfig returns a configuration with sensible defaults: an
// OpenAI-compatible provider plus a local Ollama fallback.
func NewConfig() *Config {
	return &Config{
		Version:          ConfigVersion,
		StreamingEnabled: true,
		BudgetTokens:     200000,
		Providers: []ProviderConfig{
			{
				ID:      "openai",
				BaseURL: "https://api.openai.com/v1",
				Models: []ModelConfig{
					{ID: "gpt-4o", Capabilities: []string{"planning", "streaming", "vision"}},
					{ID: "gpt-4o-mini", Capabilities: []string{"streaming"}},
				},
			},
			{
				ID: "ollama",
				Models: []ModelConfig{
					{ID: "qwen2.5-coder:14b", Capabilities: []string{"planning"}, FreeTier: true},
				},
			},
		},
	}
}

// CallTimeout converts the configured seconds into a duration, zero when
// unset.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// GetConfigDir returns the configuration directory, creating it if needed.
// PLANWEAVER_HOME overrides the default location under the home directory.
func GetConfigDir() (string, error) {
	if override := os.Getenv("PLANWEAVER_HOME"); override != "" {
		if err := os.MkdirAll(override, 0700); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		return override, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the full path to the config file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// Load reads the config file, returning defaults when it does not exist.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return NewConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = ConfigVersion
	}

	return &cfg, nil
}

// Save writes the config file.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}
