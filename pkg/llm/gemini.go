package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"

	"github.com/planweaver/planweaver/pkg/cascade"
)

// GeminiProvider calls the Gemini API through the official genai client.
type GeminiProvider struct {
	id     string
	client *genai.Client
}

// NewGeminiProvider creates the provider. The client reads its API key
// from the environment when apiKey is empty.
func NewGeminiProvider(ctx context.Context, id, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &CallError{Kind: KindAuth, Message: "could not create gemini client", Err: err}
	}
	return &GeminiProvider{id: id, client: client}, nil
}

func (p *GeminiProvider) ID() string { return p.id }

func (p *GeminiProvider) Call(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options) (*Response, error) {
	temperature := float32(opts.Temperature)
	resp, err := p.client.Models.GenerateContent(ctx, candidate.ModelID,
		contentsFromMessages(messages),
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		return nil, wrapGeminiError(err)
	}

	result := &Response{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error) {
	temperature := float32(opts.Temperature)

	var content strings.Builder
	usage := Usage{}

	for chunk, err := range p.client.Models.GenerateContentStream(ctx, candidate.ModelID,
		contentsFromMessages(messages),
		&genai.GenerateContentConfig{Temperature: &temperature},
	) {
		if err != nil {
			return nil, wrapGeminiError(err)
		}
		if chunk.UsageMetadata != nil {
			usage.PromptTokens = int(chunk.UsageMetadata.PromptTokenCount)
			usage.CompletionTokens = int(chunk.UsageMetadata.CandidatesTokenCount)
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		content.WriteString(text)
		if onChunk != nil {
			if err := onChunk(text); err != nil {
				return nil, &CallError{Kind: KindCancelled, Message: "stream consumer aborted", Err: err}
			}
		}
	}

	return &Response{Content: content.String(), Usage: usage}, nil
}

// contentsFromMessages maps chat messages onto genai contents. Gemini has
// no separate system role on this path, so system turns become user turns.
func contentsFromMessages(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}

func wrapGeminiError(err error) error {
	return &CallError{Kind: Classify(err), Message: "gemini call failed", Err: err}
}
