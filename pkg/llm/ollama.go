package llm

import (
	"context"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/planweaver/planweaver/pkg/cascade"
)

// OllamaProvider serves candidates from a local Ollama daemon. The client
// resolves its host from OLLAMA_HOST, matching the ollama CLI.
type OllamaProvider struct {
	id string
}

func NewOllamaProvider(id string) *OllamaProvider {
	return &OllamaProvider{id: id}
}

func (p *OllamaProvider) ID() string { return p.id }

func (p *OllamaProvider) Call(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options) (*Response, error) {
	return p.chat(ctx, candidate, messages, opts, nil)
}

func (p *OllamaProvider) Stream(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error) {
	return p.chat(ctx, candidate, messages, opts, onChunk)
}

func (p *OllamaProvider) chat(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, &CallError{Kind: KindTransport, Message: "could not create ollama client", Err: err}
	}

	ollamaMessages := make([]ollama.Message, len(messages))
	for i, msg := range messages {
		ollamaMessages[i] = ollama.Message{Role: msg.Role, Content: msg.Content}
	}

	stream := onChunk != nil
	req := &ollama.ChatRequest{
		Model:    candidate.ModelID,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
		},
	}

	var content strings.Builder
	usage := Usage{}
	respFunc := func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		if res.Done {
			usage.PromptTokens = res.Metrics.PromptEvalCount
			usage.CompletionTokens = res.Metrics.EvalCount
		}
		if onChunk != nil && res.Message.Content != "" {
			return onChunk(res.Message.Content)
		}
		return nil
	}

	if err := client.Chat(ctx, req, respFunc); err != nil {
		if ctx.Err() != nil {
			return nil, &CallError{Kind: KindCancelled, Message: "ollama call cancelled", Err: ctx.Err()}
		}
		return nil, &CallError{Kind: KindTransport, Message: "ollama chat failed", Err: err}
	}

	return &Response{Content: content.String(), Usage: usage}, nil
}
