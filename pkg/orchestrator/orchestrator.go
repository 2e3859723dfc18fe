// Package orchestrator drives one plan-generation attempt end to end:
// walk the candidate cascade, call the model, recover and validate the
// plan, apply the bounded corrective retries, and emit progress events
// along the way. Every run ends in exactly one validated plan or one
// TerminalError.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/planweaver/planweaver/pkg/cascade"
	"github.com/planweaver/planweaver/pkg/events"
	"github.com/planweaver/planweaver/pkg/llm"
	"github.com/planweaver/planweaver/pkg/logging"
	"github.com/planweaver/planweaver/pkg/plan"
	"github.com/planweaver/planweaver/pkg/prompts"
	"github.com/planweaver/planweaver/pkg/recovery"
)

// Config tunes one Orchestrator. Zero values take the defaults below.
type Config struct {
	// StreamingEnabled routes calls through Stream for candidates that
	// support it. The response is still buffered before parsing.
	StreamingEnabled bool
	// CallTimeout bounds each individual model call.
	CallTimeout time.Duration
	// ValidationRetries is the per-candidate budget of corrective retries
	// after a malformed or invalid response. Zero means the default of 1;
	// the budget cannot be configured away entirely.
	ValidationRetries int
	// EmptyRetries is the cascade-wide budget of same-candidate retries
	// after an empty response. Zero means the default of 1.
	EmptyRetries int
	Temperature  float64
}

const (
	defaultCallTimeout       = 2 * time.Minute
	defaultValidationRetries = 1
	defaultEmptyRetries      = 1
)

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.ValidationRetries <= 0 {
		c.ValidationRetries = defaultValidationRetries
	}
	if c.EmptyRetries <= 0 {
		c.EmptyRetries = defaultEmptyRetries
	}
	return c
}

// Request is one generation attempt: the user's prompt plus the cascade
// the candidate builder produced for it.
type Request struct {
	Prompt     string
	Candidates []cascade.Candidate
	// BudgetEstimate is reserved up front and the unused remainder
	// refunded when the attempt settles. Zero skips the budget entirely.
	BudgetEstimate int
}

// Metadata describes how an outcome was produced.
type Metadata struct {
	Provider string
	Model    string
	Label    string
	Usage    llm.Usage
	Elapsed  time.Duration
	Calls    int
	Fallback bool
	Warnings []string
}

// Outcome is the success result: a validated plan and its provenance.
type Outcome struct {
	Plan *plan.Plan
	Meta Metadata
}

// Orchestrator runs generation attempts. Safe for concurrent use; all
// per-attempt state lives in Generate's frame.
type Orchestrator struct {
	caller llm.Caller
	sink   events.Sink
	budget Budget
	cfg    Config
}

// New builds an orchestrator. sink may be nil to discard events; budget
// may be nil to run unmetered.
func New(caller llm.Caller, sink events.Sink, budget Budget, cfg Config) *Orchestrator {
	if sink == nil {
		sink = events.Discard{}
	}
	return &Orchestrator{
		caller: caller,
		sink:   sink,
		budget: budget,
		cfg:    cfg.withDefaults(),
	}
}

// Generate walks the cascade until one candidate yields a validated plan
// or every candidate is exhausted. The returned error, when non-nil, is
// always a *TerminalError.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	state := &cascadeState{}

	if len(req.Candidates) == 0 {
		return nil, o.fail(state, CodeNoCandidates, "no candidates available for this request")
	}

	if o.budget != nil && req.BudgetEstimate > 0 {
		if err := o.budget.Reserve(req.BudgetEstimate); err != nil {
			return nil, o.fail(state, CodeBudgetExceeded,
				fmt.Sprintf("cannot reserve %d tokens: %v", req.BudgetEstimate, err))
		}
		defer func() {
			used := state.usage.PromptTokens + state.usage.CompletionTokens
			if remainder := req.BudgetEstimate - used; remainder > 0 {
				o.budget.Refund(remainder)
			}
		}()
	}

	base := []llm.Message{
		{Role: "system", Content: prompts.PlanSystem()},
		{Role: "user", Content: prompts.PlanRequest(req.Prompt)},
	}
	note := "" // corrective note carried into the next call, candidate changes included

	for state.index < len(req.Candidates) {
		candidate := req.Candidates[state.index]
		state.attempted = append(state.attempted, candidate.Label)
		o.emit(events.TypeStatus, "trying "+candidate.Label, map[string]any{
			"provider": candidate.ProviderID,
			"model":    candidate.ModelID,
		})

		outcome, err := o.runCandidate(ctx, state, candidate, base, &note, start)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}

		state.index++
		if state.index < len(req.Candidates) {
			o.emit(events.TypeStatus, "falling back to next candidate", nil)
		}
	}

	switch state.lastFailure {
	case failureEmpty:
		return nil, o.fail(state, CodeEmptyResponse, "every candidate returned empty content")
	case failureMalformed:
		return nil, o.fail(state, CodeProtocolFailure, "no candidate produced a usable plan")
	default:
		return nil, o.fail(state, CodeAllModelsExhausted, "all candidates failed")
	}
}

// runCandidate drives the retry loop for one candidate. It returns a
// non-nil outcome on success, a non-nil error on a terminal condition,
// and (nil, nil) when the cascade should advance to the next candidate.
func (o *Orchestrator) runCandidate(ctx context.Context, state *cascadeState, candidate cascade.Candidate, base []llm.Message, note *string, start time.Time) (*Outcome, error) {
	correctiveUsed := 0

	for {
		if ctx.Err() != nil {
			return nil, o.fail(state, CodeCancelled, "generation cancelled")
		}

		resp, err := o.call(ctx, candidate, withNote(base, *note))
		state.calls++

		if err != nil {
			// A nil result means the failure was recorded and the cascade
			// should advance; anything else ends the run.
			if termErr := o.handleCallError(ctx, state, candidate, err); termErr != nil {
				return nil, termErr
			}
			return nil, nil
		}

		state.addUsage(resp.Usage)

		if strings.TrimSpace(resp.Content) == "" {
			if state.emptyRetries < o.cfg.EmptyRetries {
				state.emptyRetries++
				o.emit(events.TypeStatus, "empty response, retrying "+candidate.Label, nil)
				continue
			}
			state.noteFailure(failureEmpty, candidate.Label+": empty response")
			o.emit(events.TypeError, candidate.Label+" returned empty content", nil)
			return nil, nil
		}

		result, extractErr := recovery.Extract(resp.Content, "steps")
		if extractErr != nil {
			state.lastPreview = previewOf(extractErr, resp.Content)
			state.noteFailure(failureMalformed, fmt.Sprintf("%s: %v", candidate.Label, extractErr))
			o.emit(events.TypeError, fmt.Sprintf("unparseable response from %s: %v", candidate.Label, extractErr), map[string]any{
				"preview": state.lastPreview,
			})
			*note = prompts.CorrectiveNote(extractErr.Error(), state.lastPreview)
			if correctiveUsed < o.cfg.ValidationRetries {
				correctiveUsed++
				continue
			}
			return nil, nil
		}

		validated, validationErr := plan.Validate(result.Value)
		if validationErr != nil {
			if outcome, retry, termErr := o.handleInvalidPlan(state, candidate, result, validationErr, note, start); termErr != nil || outcome != nil {
				return outcome, termErr
			} else if retry {
				continue
			}
			state.lastPreview = result.Preview
			state.noteFailure(failureMalformed, fmt.Sprintf("%s: %v", candidate.Label, validationErr))
			o.emit(events.TypeError, fmt.Sprintf("invalid plan from %s: %v", candidate.Label, validationErr), map[string]any{
				"preview": result.Preview,
			})
			*note = prompts.CorrectiveNote(validationErr.Error(), result.Preview)
			if correctiveUsed < o.cfg.ValidationRetries {
				correctiveUsed++
				continue
			}
			return nil, nil
		}

		p := validated.Plan
		for _, inv := range validated.Dropped {
			state.warnings = append(state.warnings,
				fmt.Sprintf("dropped step %d: %s", inv.Index, inv.Reason))
		}

		if missing := plan.MissingScripts(p); len(missing) > 0 {
			if !state.manifestRetried {
				state.manifestRetried = true
				*note = prompts.ManifestRepairNote(missing)
				o.emit(events.TypeStatus, "plan invokes undeclared scripts, retrying: "+strings.Join(missing, ", "), nil)
				continue
			}
			p.Steps = append([]plan.Step{plan.SynthesizeManifestStep(missing)}, p.Steps...)
			state.warnings = append(state.warnings,
				"synthesized package.json declaration for: "+strings.Join(missing, ", "))
			o.emit(events.TypeStatus, "synthesized missing script declarations", nil)
		}

		return o.success(state, candidate, p, start), nil
	}
}

// handleInvalidPlan deals with the one validation failure that has its own
// policy: a structurally valid plan with zero steps gets a single stronger
// retry, then is accepted as-is with a warning.
func (o *Orchestrator) handleInvalidPlan(state *cascadeState, candidate cascade.Candidate, result *recovery.Result, validationErr error, note *string, start time.Time) (outcome *Outcome, retry bool, termErr error) {
	var verr *plan.ValidationError
	if !errors.As(validationErr, &verr) || verr.Code != plan.CodeStepsEmpty {
		return nil, false, nil
	}

	if !state.emptyStepsRetried {
		state.emptyStepsRetried = true
		*note = prompts.EmptyStepsNote()
		o.emit(events.TypeStatus, "plan had no steps, retrying "+candidate.Label, nil)
		return nil, true, nil
	}

	state.warnings = append(state.warnings, "plan accepted with no steps after retry")
	o.emit(events.TypeStatus, "accepting stepless plan after retry", nil)
	return o.success(state, candidate, plan.EmptyPlan(result.Value), start), false, nil
}

// handleCallError maps a classified call failure onto cascade policy:
// auth, transport and cancellation are terminal, rate limits advance, and
// a per-call timeout is treated as a provider failure rather than user
// cancellation. A nil return means advance to the next candidate.
func (o *Orchestrator) handleCallError(ctx context.Context, state *cascadeState, candidate cascade.Candidate, err error) error {
	switch llm.Classify(err) {
	case llm.KindCancelled:
		if ctx.Err() != nil {
			return o.fail(state, CodeCancelled, "generation cancelled: "+err.Error())
		}
		state.noteFailure(failureProvider, candidate.Label+": call timed out")
		o.emit(events.TypeError, candidate.Label+" timed out", nil)
		return nil
	case llm.KindAuth:
		return o.fail(state, CodeAuthFailed,
			fmt.Sprintf("%s rejected the credentials, check the API key for %s: %v", candidate.Label, candidate.ProviderID, err))
	case llm.KindRateLimit:
		state.noteFailure(failureProvider, fmt.Sprintf("%s: rate limited: %v", candidate.Label, err))
		o.emit(events.TypeError, candidate.Label+" is rate limited, advancing", nil)
		return nil
	default:
		return o.fail(state, CodeCallFailed,
			fmt.Sprintf("%s call failed: %v", candidate.Label, err))
	}
}

func (o *Orchestrator) call(ctx context.Context, candidate cascade.Candidate, messages []llm.Message) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	opts := llm.Options{Temperature: o.cfg.Temperature}
	if o.cfg.StreamingEnabled && candidate.Has(cascade.CapabilityStreaming) {
		return o.caller.Stream(callCtx, candidate, messages, opts, func(chunk string) error {
			o.emit(events.TypeReasoning, chunk, nil)
			return nil
		})
	}
	return o.caller.Call(callCtx, candidate, messages, opts)
}

func (o *Orchestrator) success(state *cascadeState, candidate cascade.Candidate, p *plan.Plan, start time.Time) *Outcome {
	o.emit(events.TypePlan, "plan ready", map[string]any{
		"model":   candidate.Label,
		"steps":   len(p.Steps),
		"summary": p.Summary,
		"calls":   state.calls,
	})
	logging.Get().Logf("plan generated by %s after %d call(s), %d step(s)",
		candidate.Label, state.calls, len(p.Steps))
	return &Outcome{
		Plan: p,
		Meta: Metadata{
			Provider: candidate.ProviderID,
			Model:    candidate.ModelID,
			Label:    candidate.Label,
			Usage:    state.usage,
			Elapsed:  time.Since(start),
			Calls:    state.calls,
			Fallback: state.index > 0,
			Warnings: state.warnings,
		},
	}
}

func (o *Orchestrator) fail(state *cascadeState, code, message string) error {
	err := &TerminalError{
		Code:           code,
		Message:        message,
		Preview:        state.lastPreview,
		Attempted:      state.attempted,
		ProviderErrors: state.providerErrors,
	}
	o.emit(events.TypeError, err.Error(), map[string]any{
		"code":      code,
		"attempted": strings.Join(state.attempted, "; "),
	})
	logging.Get().LogError(err)
	return err
}

func (o *Orchestrator) emit(eventType, message string, meta map[string]any) {
	o.sink.Emit(events.New(eventType, message, meta))
}

// withNote appends the corrective note, when present, as a trailing user
// turn so the base conversation stays untouched between retries.
func withNote(base []llm.Message, note string) []llm.Message {
	if note == "" {
		return base
	}
	out := make([]llm.Message, len(base), len(base)+1)
	copy(out, base)
	return append(out, llm.Message{Role: "user", Content: note})
}

func previewOf(err error, raw string) string {
	var ee *recovery.ExtractError
	if errors.As(err, &ee) && ee.Preview != "" {
		return ee.Preview
	}
	return recovery.Preview(raw)
}
