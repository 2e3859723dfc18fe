package cmd

import (
	"context"
	"fmt"

	"github.com/planweaver/planweaver/pkg/cascade"
	"github.com/planweaver/planweaver/pkg/config"
	"github.com/planweaver/planweaver/pkg/events"
	"github.com/planweaver/planweaver/pkg/llm"
	"github.com/planweaver/planweaver/pkg/orchestrator"
)

// runtime bundles everything a command needs to run a generation attempt.
type runtime struct {
	cfg        *config.Config
	candidates []cascade.Candidate
	router     *llm.Router
}

// buildRuntime loads configuration and keys, resolves the candidate
// cascade, and wires a provider router for every configured backend.
func buildRuntime(ctx context.Context, requireStreaming bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	keys, err := config.LoadAPIKeys()
	if err != nil {
		return nil, err
	}

	resolved := cfg.Resolve(keys)

	required := []cascade.Capability{cascade.CapabilityPlanning}
	if requireStreaming {
		required = append(required, cascade.CapabilityStreaming)
	}
	builder := cascade.NewBuilder(cfg.AllowWeakModels, nil)
	candidates, err := builder.Build(resolved, cascade.Requirements{
		Capabilities: required,
		ExcludeFree:  cfg.ExcludeFree,
	})
	if err != nil {
		return nil, fmt.Errorf("no usable model candidates: %w", err)
	}

	providers, err := buildProviders(ctx, cfg, keys)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:        cfg,
		candidates: candidates,
		router:     llm.NewRouter(providers...),
	}, nil
}

func buildProviders(ctx context.Context, cfg *config.Config, keys config.APIKeys) ([]llm.Provider, error) {
	var providers []llm.Provider
	for _, pc := range cfg.Providers {
		switch pc.ID {
		case "ollama":
			providers = append(providers, llm.NewOllamaProvider(pc.ID))
		case "gemini":
			p, err := llm.NewGeminiProvider(ctx, pc.ID, keys.Get(pc.ID))
			if err != nil {
				return nil, fmt.Errorf("gemini client: %w", err)
			}
			providers = append(providers, p)
		default:
			// Everything else speaks the OpenAI-compatible chat API.
			providers = append(providers, llm.NewOpenAIProvider(pc.ID, pc.BaseURL, cfg.RequestsPerSecond))
		}
	}
	return providers, nil
}

// newOrchestrator assembles the orchestrator from the loaded config.
func (r *runtime) newOrchestrator(sink events.Sink) *orchestrator.Orchestrator {
	var budget orchestrator.Budget
	if r.cfg.BudgetTokens > 0 {
		budget = orchestrator.NewTokenBudget(r.cfg.BudgetTokens)
	}
	return orchestrator.New(r.router, sink, budget, orchestrator.Config{
		StreamingEnabled:  r.cfg.StreamingEnabled,
		CallTimeout:       r.cfg.CallTimeout(),
		ValidationRetries: r.cfg.ValidationRetries,
		EmptyRetries:      r.cfg.EmptyRetries,
		Temperature:       r.cfg.Temperature,
	})
}
