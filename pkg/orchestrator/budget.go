package orchestrator

import (
	"errors"
	"sync"
)

// ErrBudgetExceeded is returned by Reserve when the remaining budget
// cannot cover the request.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Budget is the reserve-then-refund protocol the orchestrator follows
// around a generation attempt. Refund is best-effort and never retried.
type Budget interface {
	Reserve(tokens int) error
	Refund(tokens int)
}

// TokenBudget is an in-process Budget shared across concurrent requests.
type TokenBudget struct {
	mu        sync.Mutex
	remaining int
}

func NewTokenBudget(limit int) *TokenBudget {
	return &TokenBudget{remaining: limit}
}

func (b *TokenBudget) Reserve(tokens int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tokens > b.remaining {
		return ErrBudgetExceeded
	}
	b.remaining -= tokens
	return nil
}

func (b *TokenBudget) Refund(tokens int) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining += tokens
}

// Remaining reports the uncommitted balance.
func (b *TokenBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
