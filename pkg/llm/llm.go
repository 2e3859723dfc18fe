// Package llm defines the model-caller boundary and the provider clients
// behind it. The orchestrator only sees the Caller interface; everything
// provider-specific stays on this side of it.
package llm

import (
	"context"

	"github.com/planweaver/planweaver/pkg/cascade"
)

// Message is one chat turn sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage carries token counters from one model call. Either counter may be
// zero when the provider does not report it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is the full text returned by one model call plus its usage.
type Response struct {
	Content string
	Usage   Usage
}

// StreamCallback receives each streamed text chunk in arrival order.
// Returning an error aborts the stream.
type StreamCallback func(chunk string) error

// Options tune a single call.
type Options struct {
	Temperature float64
}

// Caller issues one model call for a candidate. Call buffers the whole
// response; Stream delivers chunks through the callback and returns the
// buffered total. Both must honor ctx cancellation.
type Caller interface {
	Call(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options) (*Response, error)
	Stream(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error)
}

// Provider is one concrete backend (OpenAI-compatible HTTP, Ollama,
// Gemini). The Router dispatches to it by provider ID.
type Provider interface {
	Caller
	ID() string
}

// Router dispatches calls to the provider registered under the
// candidate's provider ID.
type Router struct {
	providers map[string]Provider
}

// NewRouter registers the given providers.
func NewRouter(providers ...Provider) *Router {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Router{providers: byID}
}

func (r *Router) provider(candidate cascade.Candidate) (Provider, error) {
	p, ok := r.providers[candidate.ProviderID]
	if !ok {
		return nil, &CallError{
			Kind:    KindTransport,
			Message: "no provider registered for " + candidate.ProviderID,
		}
	}
	return p, nil
}

func (r *Router) Call(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options) (*Response, error) {
	p, err := r.provider(candidate)
	if err != nil {
		return nil, err
	}
	return p.Call(ctx, candidate, messages, opts)
}

func (r *Router) Stream(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error) {
	p, err := r.provider(candidate)
	if err != nil {
		return nil, err
	}
	return p.Stream(ctx, candidate, messages, opts, onChunk)
}
