package config

import "github.com/planweaver/planweaver/pkg/cascade"

// providersWithoutCredentials run locally and never need an API key.
var providersWithoutCredentials = map[string]bool{
	"ollama": true,
}

// Resolve flattens the configured providers and models into the resolved
// entries the cascade builder consumes. Providers that require a
// credential but have none are skipped entirely; a model with no
// capability list is carried as capability-less rather than dropped.
func (c *Config) Resolve(keys APIKeys) []cascade.ResolvedConfig {
	var resolved []cascade.ResolvedConfig
	for _, provider := range c.Providers {
		credential := keys.Get(provider.ID)
		if credential == "" && !providersWithoutCredentials[provider.ID] {
			continue
		}
		for _, model := range provider.Models {
			capabilities := make([]cascade.Capability, 0, len(model.Capabilities))
			for _, capability := range model.Capabilities {
				capabilities = append(capabilities, cascade.Capability(capability))
			}
			resolved = append(resolved, cascade.ResolvedConfig{
				ProviderID:   provider.ID,
				ModelID:      model.ID,
				Credential:   credential,
				Capabilities: capabilities,
				FreeTier:     model.FreeTier,
			})
		}
	}
	return resolved
}
