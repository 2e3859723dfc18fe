package orchestrator

import "github.com/planweaver/planweaver/pkg/llm"

// failureClass buckets the failures seen while walking the cascade. The
// last class observed picks the terminal error code when every candidate
// is exhausted.
type failureClass int

const (
	failureNone failureClass = iota
	failureEmpty
	failureMalformed
	failureProvider
)

// cascadeState is the mutable state of one in-flight generation attempt.
// It is owned exclusively by a single Generate call and dies with it;
// nothing here is shared across concurrent requests.
type cascadeState struct {
	index             int
	calls             int
	emptyRetries      int  // cascade-wide same-candidate retries for empty responses
	emptyStepsRetried bool // the single corrective retry for a stepless plan
	manifestRetried   bool // the single corrective retry for a missing script declaration

	lastFailure    failureClass
	lastPreview    string
	attempted      []string
	providerErrors []string
	warnings       []string
	usage          llm.Usage
}

func (s *cascadeState) noteFailure(class failureClass, summary string) {
	s.lastFailure = class
	s.providerErrors = append(s.providerErrors, summary)
}

func (s *cascadeState) addUsage(u llm.Usage) {
	s.usage.PromptTokens += u.PromptTokens
	s.usage.CompletionTokens += u.CompletionTokens
}
