package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/planweaver/planweaver/pkg/cascade"
)

// OpenAIProvider speaks the OpenAI chat-completions wire format. Pointing
// BaseURL elsewhere covers OpenRouter, DeepInfra, and other compatible
// hosts.
type OpenAIProvider struct {
	id      string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIProvider builds a provider for one compatible host. requestsPerSecond
// bounds client-side pacing; zero disables it.
func NewOpenAIProvider(id, baseURL string, requestsPerSecond float64) *OpenAIProvider {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &OpenAIProvider{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		limiter: limiter,
	}
}

func (p *OpenAIProvider) ID() string { return p.id }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Call(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options) (*Response, error) {
	resp, err := p.send(ctx, candidate, messages, opts, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &CallError{Kind: KindTransport, Message: "malformed provider response", Err: err}
	}

	result := &Response{}
	if len(parsed.Choices) > 0 {
		result.Content = parsed.Choices[0].Message.Content
	}
	if parsed.Usage != nil {
		result.Usage = Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		}
	}
	return result, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, onChunk StreamCallback) (*Response, error) {
	resp, err := p.send(ctx, candidate, messages, opts, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var content strings.Builder
	usage := Usage{}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, &CallError{Kind: KindTransport, Message: "stream read failed", Err: err}
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate malformed keep-alive frames
		}
		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if onChunk != nil {
			if err := onChunk(delta); err != nil {
				return nil, &CallError{Kind: KindCancelled, Message: "stream consumer aborted", Err: err}
			}
		}
	}

	return &Response{Content: content.String(), Usage: usage}, nil
}

func (p *OpenAIProvider) send(ctx context.Context, candidate cascade.Candidate, messages []Message, opts Options, stream bool) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &CallError{Kind: KindCancelled, Message: "cancelled while pacing", Err: err}
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       candidate.ModelID,
		Messages:    messages,
		Temperature: opts.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, &CallError{Kind: KindTransport, Message: "failed to encode request", Err: err}
	}

	resp, err := p.sendWithBackoff(ctx, candidate, body, stream)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &CallError{
			Kind:    classifyStatus(resp.StatusCode),
			Message: fmt.Sprintf("%s returned HTTP %d: %s", p.id, resp.StatusCode, strings.TrimSpace(string(payload))),
		}
	}
	return resp, nil
}

// sendWithBackoff retries transient failures with exponential backoff.
// Auth and rate-limit statuses are returned to the caller untouched; their
// handling belongs to the cascade, not to the transport.
func (p *OpenAIProvider) sendWithBackoff(ctx context.Context, candidate cascade.Candidate, body []byte, stream bool) (*http.Response, error) {
	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &CallError{Kind: KindCancelled, Message: "call cancelled", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, &CallError{Kind: KindTransport, Message: "failed to build request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+candidate.Credential)
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
					continue
				case <-ctx.Done():
					return nil, &CallError{Kind: KindCancelled, Message: "call cancelled", Err: ctx.Err()}
				}
			}
			return nil, &CallError{Kind: KindTransport, Message: "request failed", Err: lastErr}
		}

		switch resp.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.id)
			if attempt < maxRetries {
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
					continue
				case <-ctx.Done():
					return nil, &CallError{Kind: KindCancelled, Message: "call cancelled", Err: ctx.Err()}
				}
			}
			return nil, &CallError{Kind: KindTransport, Message: "request failed after retries", Err: lastErr}
		default:
			return resp, nil
		}
	}

	return nil, &CallError{Kind: KindTransport, Message: "request failed", Err: lastErr}
}
