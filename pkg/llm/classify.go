package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies a failed call for the orchestrator's retry policy.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"       // bad or missing credentials, never retried
	KindRateLimit ErrorKind = "rate_limit" // advance the cascade, do not retry this candidate
	KindTransport ErrorKind = "transport"  // network or server failure
	KindCancelled ErrorKind = "cancelled"  // caller gave up
)

// CallError is a classified provider failure.
type CallError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CallError) Unwrap() error { return e.Err }

// Classify maps an arbitrary call error onto an ErrorKind, sniffing status
// codes and common provider phrasings out of the message when no CallError
// is present.
func Classify(err error) ErrorKind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication"):
		return KindAuth
	default:
		return KindTransport
	}
}

// classifyStatus maps an HTTP status to an ErrorKind for providers that
// speak plain HTTP.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	default:
		return KindTransport
	}
}
