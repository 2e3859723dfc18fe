// Package plan defines the validated change-plan structure and the
// validator that turns loosely shaped model output into one.
package plan

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// StepType discriminates the two supported step variants.
type StepType string

const (
	StepTypeFileEdit StepType = "file_edit"
	StepTypeCommand  StepType = "command"
)

// Step is one executable unit of a plan. Exactly one variant applies:
// file_edit steps carry Path and NewContent, command steps carry Command.
type Step struct {
	Type        StepType `json:"type"`
	Path        string   `json:"path,omitempty"`
	NewContent  string   `json:"newContent,omitempty"`
	OldContent  string   `json:"oldContent,omitempty"`
	Command     string   `json:"command,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Plan is an ordered sequence of validated steps.
type Plan struct {
	Steps   []Step `json:"steps"`
	Summary string `json:"summary,omitempty"`
}

// InvalidStep records a rejected step with its original index and the
// reason it failed classification.
type InvalidStep struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Label returns a short human-readable identity for the step, used in
// events and logs.
func (s Step) Label() string {
	switch s.Type {
	case StepTypeFileEdit:
		return fmt.Sprintf("edit %s", s.Path)
	case StepTypeCommand:
		return fmt.Sprintf("run %s", s.Command)
	default:
		return string(s.Type)
	}
}

// DiffPreview renders a compact semantic diff between OldContent and
// NewContent for file_edit steps. Returns "" when there is nothing to
// compare against.
func (s Step) DiffPreview() string {
	if s.Type != StepTypeFileEdit || s.OldContent == "" {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(s.OldContent, s.NewContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("+")
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString("-")
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
