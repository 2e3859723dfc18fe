package orchestrator

import "fmt"

// Stable machine-readable codes carried by every terminal failure.
const (
	CodeEmptyResponse      = "EMPTY_RESPONSE"
	CodeProtocolFailure    = "AGENT_PROTOCOL_FAILURE"
	CodeAllModelsExhausted = "ALL_MODELS_EXHAUSTED"
	CodeBudgetExceeded     = "BUDGET_EXCEEDED"
	CodeAuthFailed         = "MODEL_AUTH_FAILED"
	CodeCallFailed         = "MODEL_CALL_FAILED"
	CodeCancelled          = "CANCELLED"
	CodeNoCandidates       = "NO_CANDIDATES"
)

// TerminalError is the one failure shape the orchestrator returns. It
// carries enough context for an operator to diagnose the run without the
// full raw payload: a capped preview, the candidate labels attempted, and
// the provider-error summaries collected along the cascade.
type TerminalError struct {
	Code           string
	Message        string
	Preview        string
	Attempted      []string
	ProviderErrors []string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
