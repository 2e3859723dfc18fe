package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"call error passes through", &CallError{Kind: KindRateLimit, Message: "x"}, KindRateLimit},
		{"wrapped call error", fmt.Errorf("outer: %w", &CallError{Kind: KindAuth, Message: "x"}), KindAuth},
		{"context cancelled", context.Canceled, KindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, KindCancelled},
		{"429 in message", errors.New("HTTP 429 Too Many Requests"), KindRateLimit},
		{"rate limit phrase", errors.New("openrouter: rate limit exceeded, retry later"), KindRateLimit},
		{"quota phrase", errors.New("quota exhausted for project"), KindRateLimit},
		{"401 in message", errors.New("HTTP 401 from provider"), KindAuth},
		{"invalid key phrase", errors.New("Invalid API Key provided"), KindAuth},
		{"connection refused", errors.New("dial tcp: connection refused"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindAuth, classifyStatus(401))
	assert.Equal(t, KindAuth, classifyStatus(403))
	assert.Equal(t, KindRateLimit, classifyStatus(429))
	assert.Equal(t, KindTransport, classifyStatus(500))
	assert.Equal(t, KindTransport, classifyStatus(400))
}

func TestCallError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &CallError{Kind: KindTransport, Message: "request failed", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "boom")
}
