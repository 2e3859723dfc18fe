package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(fields map[string]any) any { return fields }

func TestValidate_ValidMixedPlan(t *testing.T) {
	value := map[string]any{
		"summary": "add build step",
		"steps": []any{
			step(map[string]any{"type": "file_edit", "path": "main.go", "newContent": "package main\n"}),
			step(map[string]any{"type": "command", "command": "go build ./..."}),
		},
	}

	result, err := Validate(value)
	require.NoError(t, err)
	require.Len(t, result.Plan.Steps, 2)
	assert.Empty(t, result.Dropped)
	assert.Equal(t, "add build step", result.Plan.Summary)
	assert.Equal(t, StepTypeFileEdit, result.Plan.Steps[0].Type)
	assert.Equal(t, StepTypeCommand, result.Plan.Steps[1].Type)
}

func TestValidate_DropsInvalidKeepsOrder(t *testing.T) {
	value := map[string]any{
		"steps": []any{
			step(map[string]any{"type": "command", "command": "first"}),
			step(map[string]any{"type": "file_edit", "path": ""}), // invalid: empty path
			step(map[string]any{"type": "teleport"}),              // invalid: unknown type
			step(map[string]any{"type": "command", "command": "second"}),
			42, // invalid: not an object
		},
	}

	result, err := Validate(value)
	require.NoError(t, err)

	require.Len(t, result.Plan.Steps, 2)
	assert.Equal(t, "first", result.Plan.Steps[0].Command)
	assert.Equal(t, "second", result.Plan.Steps[1].Command)

	require.Len(t, result.Dropped, 3)
	assert.Equal(t, 1, result.Dropped[0].Index)
	assert.Contains(t, result.Dropped[0].Reason, "path")
	assert.Equal(t, 2, result.Dropped[1].Index)
	assert.Contains(t, result.Dropped[1].Reason, "teleport")
	assert.Equal(t, 4, result.Dropped[2].Index)
	assert.Contains(t, result.Dropped[2].Reason, "not an object")
}

func TestValidate_FlattensNestedArrays(t *testing.T) {
	value := map[string]any{
		"steps": []any{
			[]any{
				step(map[string]any{"type": "command", "command": "a"}),
				step(map[string]any{"type": "command", "command": "b"}),
			},
			step(map[string]any{"type": "command", "command": "c"}),
		},
	}

	result, err := Validate(value)
	require.NoError(t, err)
	require.Len(t, result.Plan.Steps, 3)
	assert.Equal(t, "a", result.Plan.Steps[0].Command)
	assert.Equal(t, "c", result.Plan.Steps[2].Command)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		value any
		code  string
	}{
		{"not an object", []any{"steps"}, CodeNotAnObject},
		{"steps missing", map[string]any{"summary": "x"}, CodeStepsMissing},
		{"steps not array", map[string]any{"steps": "do things"}, CodeStepsNotArray},
		{"steps empty", map[string]any{"steps": []any{}}, CodeStepsEmpty},
		{"bare string steps", map[string]any{"steps": []any{"edit a file", "run tests"}}, CodeStepsDescriptions},
		{"all invalid", map[string]any{"steps": []any{map[string]any{"type": "command"}}}, CodeNoValidSteps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.value)
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.code, vErr.Code)
		})
	}
}

func TestValidate_AllInvalidCarriesReasons(t *testing.T) {
	value := map[string]any{
		"steps": []any{
			step(map[string]any{"type": "command"}),
			step(map[string]any{"path": "a.go"}),
		},
	}

	_, err := Validate(value)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Invalid, 2)
	assert.Contains(t, vErr.Invalid[0].Reason, "command")
	assert.Contains(t, vErr.Invalid[1].Reason, "missing type")
	assert.Contains(t, vErr.Error(), "step 0")
}

func TestMissingScripts(t *testing.T) {
	tests := []struct {
		name    string
		plan    *Plan
		missing []string
	}{
		{
			name: "npm run with no manifest",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeCommand, Command: "npm run build"},
			}},
			missing: []string{"build"},
		},
		{
			name: "script declared in manifest edit",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeFileEdit, Path: "package.json", NewContent: `{"scripts": {"build": "tsc"}}`},
				{Type: StepTypeCommand, Command: "npm run build"},
			}},
			missing: nil,
		},
		{
			name: "yarn builtin is not a script",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeCommand, Command: "yarn install"},
			}},
			missing: nil,
		},
		{
			name: "multiple invocations sorted",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeCommand, Command: "pnpm run lint && npm run test"},
			}},
			missing: []string{"lint", "test"},
		},
		{
			name: "manifest in subdirectory counts",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeFileEdit, Path: "web/package.json", NewContent: `{"scripts": {"dev": "vite"}}`},
				{Type: StepTypeCommand, Command: "npm run dev"},
			}},
			missing: nil,
		},
		{
			name: "unparseable manifest still declares its scripts",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeFileEdit, Path: "package.json", NewContent: `{"scripts": {"dev": "vite"},}`},
				{Type: StepTypeCommand, Command: "npm run dev"},
			}},
			missing: nil,
		},
		{
			name: "keys outside the scripts object are not declarations",
			plan: &Plan{Steps: []Step{
				{Type: StepTypeFileEdit, Path: "package.json", NewContent: `{"scripts": {"test": "jest"}, "devDependencies": {"build": "^1.0.0"},}`},
				{Type: StepTypeCommand, Command: "npm run build"},
			}},
			missing: []string{"build"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missing, MissingScripts(tt.plan))
		})
	}
}

func TestSynthesizeManifestStep(t *testing.T) {
	step := SynthesizeManifestStep([]string{"build"})

	assert.Equal(t, StepTypeFileEdit, step.Type)
	assert.Equal(t, "package.json", step.Path)
	assert.Contains(t, step.NewContent, `"build"`)

	// The synthesized step must satisfy the scan it repairs.
	p := &Plan{Steps: []Step{step, {Type: StepTypeCommand, Command: "npm run build"}}}
	assert.Empty(t, MissingScripts(p))
}

func TestStepDiffPreview(t *testing.T) {
	edit := Step{
		Type:       StepTypeFileEdit,
		Path:       "a.txt",
		OldContent: "hello world\n",
		NewContent: "hello there\n",
	}
	preview := edit.DiffPreview()
	assert.Contains(t, preview, "-")
	assert.Contains(t, preview, "+")

	noOld := Step{Type: StepTypeFileEdit, Path: "a.txt", NewContent: "x"}
	assert.Empty(t, noOld.DiffPreview())

	command := Step{Type: StepTypeCommand, Command: "ls"}
	assert.Empty(t, command.DiffPreview())
}
