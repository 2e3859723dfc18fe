// Package events carries typed progress notifications from the generation
// orchestrator to an external observer. Events are flat records, each safe
// to serialize as a single line of a text stream.
package events

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Event types emitted during a generation attempt.
const (
	TypeReasoning  = "reasoning"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeStatus     = "status"
	TypePlan       = "plan"
	TypeError      = "error"
)

// Event is one notification. Meta is an open bag of flat values.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Sink consumes events in emission order.
type Sink interface {
	Emit(event Event)
}

// New builds an event with a fresh ID.
func New(eventType, message string, meta map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Message: message,
		Meta:    meta,
	}
}

// NDJSONSink writes each event as one line of JSON. Safe for concurrent
// use; line order is emission order.
type NDJSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONSink wraps w. Each Emit produces exactly one newline-terminated
// JSON record.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{enc: json.NewEncoder(w)}
}

func (s *NDJSONSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Encode appends the trailing newline itself. An event that cannot be
	// serialized is dropped rather than corrupting the stream.
	_ = s.enc.Encode(event)
}

// Recorder retains every emitted event, preserving order. Used by tests
// and by callers that render events after the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a snapshot of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Discard ignores every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// Multi fans one event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}
