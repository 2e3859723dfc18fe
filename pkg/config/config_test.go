package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweaver/planweaver/pkg/cascade"
)

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("PLANWEAVER_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ConfigVersion, cfg.Version)
	assert.True(t, cfg.StreamingEnabled)
	assert.NotEmpty(t, cfg.Providers)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("PLANWEAVER_HOME", t.TempDir())

	cfg := NewConfig()
	cfg.AllowWeakModels = true
	cfg.ValidationRetries = 2
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.True(t, loaded.AllowWeakModels)
	assert.Equal(t, 2, loaded.ValidationRetries)
	assert.Equal(t, cfg.Providers, loaded.Providers)
}

func TestAPIKeysRoundTrip(t *testing.T) {
	t.Setenv("PLANWEAVER_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")

	keys := APIKeys{}
	keys.Set("openai", "sk-test")
	require.NoError(t, SaveAPIKeys(keys))

	loaded, err := LoadAPIKeys()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", loaded.Get("openai"))
	assert.True(t, loaded.Has("openai"))
	assert.False(t, loaded.Has("openrouter"))
}

func TestAPIKeysPopulateFromEnvironment(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-env")
	t.Setenv("OPENAI_API_KEY", "")

	keys := APIKeys{"openai": "sk-file"}
	updated := keys.PopulateFromEnvironment()

	assert.True(t, updated)
	assert.Equal(t, "or-env", keys.Get("openrouter"))
	// File keys win over the environment.
	assert.Equal(t, "sk-file", keys.Get("openai"))
}

func TestResolveSkipsProvidersWithoutCredentials(t *testing.T) {
	cfg := &Config{
		Providers: []ProviderConfig{
			{ID: "openai", Models: []ModelConfig{
				{ID: "gpt-4o", Capabilities: []string{"planning", "streaming"}},
			}},
			{ID: "openrouter", Models: []ModelConfig{
				{ID: "deepseek-chat", FreeTier: true},
			}},
			{ID: "ollama", Models: []ModelConfig{
				{ID: "qwen2.5-coder:14b"},
			}},
		},
	}
	keys := APIKeys{"openai": "sk-test"}

	resolved := cfg.Resolve(keys)

	require.Len(t, resolved, 2)
	assert.Equal(t, "openai", resolved[0].ProviderID)
	assert.Equal(t, []cascade.Capability{cascade.CapabilityPlanning, cascade.CapabilityStreaming}, resolved[0].Capabilities)
	assert.Equal(t, "sk-test", resolved[0].Credential)
	// Ollama is local and needs no key.
	assert.Equal(t, "ollama", resolved[1].ProviderID)
	assert.Empty(t, resolved[1].Credential)
}
