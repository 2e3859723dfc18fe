package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Validation failure codes. The orchestrator keys its retry policy off
// these rather than parsing error text.
const (
	CodeNotAnObject       = "not_an_object"
	CodeStepsMissing      = "steps_missing"
	CodeStepsNotArray     = "steps_not_array"
	CodeStepsEmpty        = "steps_empty"
	CodeStepsDescriptions = "steps_are_descriptions"
	CodeNoValidSteps      = "no_valid_steps"
)

// ValidationError explains why a parsed value could not become a Plan.
type ValidationError struct {
	Code    string
	Invalid []InvalidStep
}

func (e *ValidationError) Error() string {
	if len(e.Invalid) == 0 {
		return e.Code
	}
	reasons := make([]string, len(e.Invalid))
	for i, inv := range e.Invalid {
		reasons[i] = fmt.Sprintf("step %d: %s", inv.Index, inv.Reason)
	}
	return fmt.Sprintf("%s (%s)", e.Code, strings.Join(reasons, "; "))
}

// Result is a validated plan together with the steps that were excluded
// and why. Dropped steps are never silently discarded.
type Result struct {
	Plan    *Plan
	Dropped []InvalidStep
}

// Validate checks the shape of a parsed value and returns the plan built
// from its valid steps, preserving their original order. The value must be
// an object with a "steps" array; a nested array-of-arrays is flattened one
// level first. If every element is a bare string the plan is reported as
// needing a descriptions repair rather than being coerced. If no element
// survives classification the whole plan is rejected.
func Validate(value any) (*Result, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &ValidationError{Code: CodeNotAnObject}
	}

	rawSteps, present := obj["steps"]
	if !present {
		return nil, &ValidationError{Code: CodeStepsMissing}
	}
	elements, ok := rawSteps.([]any)
	if !ok {
		return nil, &ValidationError{Code: CodeStepsNotArray}
	}

	elements = flattenOnce(elements)

	summary, _ := obj["summary"].(string)

	if len(elements) == 0 {
		return nil, &ValidationError{Code: CodeStepsEmpty}
	}

	if allStrings(elements) {
		return nil, &ValidationError{Code: CodeStepsDescriptions}
	}

	var steps []Step
	var dropped []InvalidStep
	for i, element := range elements {
		step, reason := classifyStep(element)
		if reason != "" {
			dropped = append(dropped, InvalidStep{Index: i, Reason: reason})
			continue
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, &ValidationError{Code: CodeNoValidSteps, Invalid: dropped}
	}

	return &Result{
		Plan:    &Plan{Steps: steps, Summary: summary},
		Dropped: dropped,
	}, nil
}

// flattenOnce unwraps a steps array whose elements are themselves arrays, a
// common model mistake. Only one level is flattened.
func flattenOnce(elements []any) []any {
	nested := false
	for _, e := range elements {
		if _, ok := e.([]any); ok {
			nested = true
			break
		}
	}
	if !nested {
		return elements
	}

	var flat []any
	for _, e := range elements {
		if inner, ok := e.([]any); ok {
			flat = append(flat, inner...)
		} else {
			flat = append(flat, e)
		}
	}
	return flat
}

func allStrings(elements []any) bool {
	for _, e := range elements {
		if _, ok := e.(string); !ok {
			return false
		}
	}
	return len(elements) > 0
}

// classifyStep resolves one element to a step variant. The returned reason
// is "" on success; otherwise it names the offending field and the keys the
// element actually carried.
func classifyStep(element any) (Step, string) {
	obj, ok := element.(map[string]any)
	if !ok {
		return Step{}, fmt.Sprintf("not an object (got %T)", element)
	}

	typeValue, _ := obj["type"].(string)
	if typeValue == "" {
		return Step{}, fmt.Sprintf("missing type (keys: %s)", visibleKeys(obj))
	}

	switch StepType(typeValue) {
	case StepTypeFileEdit:
		path, _ := obj["path"].(string)
		if strings.TrimSpace(path) == "" {
			return Step{}, fmt.Sprintf("file_edit missing path (keys: %s)", visibleKeys(obj))
		}
		content, ok := obj["newContent"].(string)
		if !ok || content == "" {
			return Step{}, fmt.Sprintf("file_edit %s missing newContent (keys: %s)", path, visibleKeys(obj))
		}
		old, _ := obj["oldContent"].(string)
		desc, _ := obj["description"].(string)
		return Step{
			Type:        StepTypeFileEdit,
			Path:        path,
			NewContent:  content,
			OldContent:  old,
			Description: desc,
		}, ""

	case StepTypeCommand:
		command, _ := obj["command"].(string)
		if strings.TrimSpace(command) == "" {
			return Step{}, fmt.Sprintf("command step missing command (keys: %s)", visibleKeys(obj))
		}
		desc, _ := obj["description"].(string)
		return Step{
			Type:        StepTypeCommand,
			Command:     command,
			Description: desc,
		}, ""

	default:
		return Step{}, fmt.Sprintf("unknown step type %q (keys: %s)", typeValue, visibleKeys(obj))
	}
}

func visibleKeys(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
