package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// APIKeys maps provider IDs to credentials. Stored separately from the
// config file with tighter permissions.
type APIKeys map[string]string

// envVarsByProvider names the environment variable each provider's key is
// read from.
var envVarsByProvider = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"deepinfra":  "DEEPINFRA_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

func (a APIKeys) Get(provider string) string {
	return a[provider]
}

func (a *APIKeys) Set(provider, key string) {
	if *a == nil {
		*a = make(map[string]string)
	}
	(*a)[provider] = key
}

func (a APIKeys) Has(provider string) bool {
	return a[provider] != ""
}

// PopulateFromEnvironment fills in keys set via environment variables
// without overwriting keys already on file. Reports whether anything
// changed.
func (a *APIKeys) PopulateFromEnvironment() bool {
	updated := false
	for provider, envVar := range envVarsByProvider {
		if key := os.Getenv(envVar); key != "" && !a.Has(provider) {
			a.Set(provider, key)
			updated = true
		}
	}
	return updated
}

// GetAPIKeysPath returns the full path to the API keys file.
func GetAPIKeysPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, APIKeysFileName), nil
}

// LoadAPIKeys loads keys from file, merging in any set via environment.
func LoadAPIKeys() (APIKeys, error) {
	apiKeysPath, err := GetAPIKeysPath()
	if err != nil {
		return nil, err
	}

	keys := APIKeys{}
	if data, err := os.ReadFile(apiKeysPath); err == nil {
		if err := json.Unmarshal(data, &keys); err != nil {
			return nil, fmt.Errorf("failed to parse API keys file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read API keys file: %w", err)
	}

	keys.PopulateFromEnvironment()
	return keys, nil
}

// SaveAPIKeys writes the keys file with owner-only permissions.
func SaveAPIKeys(keys APIKeys) error {
	apiKeysPath, err := GetAPIKeysPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal API keys: %w", err)
	}

	return os.WriteFile(apiKeysPath, data, 0600)
}
