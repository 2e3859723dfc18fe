package recovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NarratedPythonStylePayload(t *testing.T) {
	input := `Looking at this: {'steps': [{'type':'file_edit','path':'a.ts','newContent':'x'},], 'summary':'ok',}`

	result, err := Extract(input, "steps")
	require.NoError(t, err)

	obj, ok := result.Value.(map[string]any)
	require.True(t, ok, "expected top-level object")
	assert.Equal(t, "ok", obj["summary"])

	steps, ok := obj["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)

	step := steps[0].(map[string]any)
	assert.Equal(t, "file_edit", step["type"])
	assert.Equal(t, "a.ts", step["path"])
	assert.Equal(t, "x", step["newContent"])
}

func TestExtract_Fences(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json fence", "```json\n{\"steps\": []}\n```"},
		{"bare fence", "```\n{\"steps\": []}\n```"},
		{"dangling opening fence", "```json\n{\"steps\": []}"},
		{"dangling closing fence", "{\"steps\": []}\n```"},
		{"bom prefix", "\ufeff{\"steps\": []}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract(tt.input)
			require.NoError(t, err)
			obj := result.Value.(map[string]any)
			assert.Contains(t, obj, "steps")
		})
	}
}

func TestExtract_FailsFast(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "", "empty response"},
		{"whitespace", "   \n\t ", "empty response"},
		{"no braces", "I cannot produce a plan for that.", "no JSON object or array found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.input)
			require.Error(t, err)
			var extractErr *ExtractError
			require.ErrorAs(t, err, &extractErr)
			assert.Contains(t, extractErr.Reason, tt.reason)
		})
	}
}

func TestExtract_RequiredKeys(t *testing.T) {
	_, err := Extract(`{"summary": "done"}`, "steps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required keys: steps")

	result, err := Extract(`{"steps": [], "summary": "done"}`, "steps")
	require.NoError(t, err)
	assert.NotNil(t, result.Value)
}

func TestExtract_BalancedRegionIgnoresSuffix(t *testing.T) {
	prefix := "Here is the plan you asked for:\n"
	payload := `{"steps": [{"type": "command", "command": "go test ./..."}]}`
	suffix := "\nLet me know if you need anything else! }"

	result, err := Extract(prefix + payload + suffix)
	require.NoError(t, err)

	obj := result.Value.(map[string]any)
	steps := obj["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "go test ./...", steps[0].(map[string]any)["command"])
}

func TestExtract_StartIndexPrefersRequiredKey(t *testing.T) {
	// The narration contains a decoy object; the required key must win.
	input := `The config is {"debug": true}. Plan: {"steps": [{"type": "command", "command": "make"}]}`

	result, err := Extract(input, "steps")
	require.NoError(t, err)
	obj := result.Value.(map[string]any)
	assert.Contains(t, obj, "steps")
	assert.NotContains(t, obj, "debug")
}

func TestExtract_ControlCharactersInsideStrings(t *testing.T) {
	input := "{\"steps\": [{\"type\": \"file_edit\", \"path\": \"a.go\", \"newContent\": \"line1\nline2\tend\"}]}"

	result, err := Extract(input)
	require.NoError(t, err)

	step := result.Value.(map[string]any)["steps"].([]any)[0].(map[string]any)
	assert.Equal(t, "line1\nline2\tend", step["newContent"])
}

func TestExtract_MissingCommaBetweenProperties(t *testing.T) {
	input := `{"summary": "ok" "steps": [{"type": "command" "command": "ls"}]}`

	result, err := Extract(input)
	require.NoError(t, err)

	obj := result.Value.(map[string]any)
	assert.Equal(t, "ok", obj["summary"])
	step := obj["steps"].([]any)[0].(map[string]any)
	assert.Equal(t, "ls", step["command"])
}

func TestExtract_AdjacentObjectsGainComma(t *testing.T) {
	input := `{"steps": [{"type": "command", "command": "a"} {"type": "command", "command": "b"}]}`

	result, err := Extract(input)
	require.NoError(t, err)

	steps := result.Value.(map[string]any)["steps"].([]any)
	require.Len(t, steps, 2)
}

func TestExtract_Barewords(t *testing.T) {
	input := `{"steps": [], "draft": True, "reviewed": False, "parent": None}`

	result, err := Extract(input)
	require.NoError(t, err)

	obj := result.Value.(map[string]any)
	assert.Equal(t, true, obj["draft"])
	assert.Equal(t, false, obj["reviewed"])
	assert.Nil(t, obj["parent"])
}

func TestExtract_PreviewIsCapped(t *testing.T) {
	input := "narration " + strings.Repeat("x", 5000)

	_, err := Extract(input)
	require.Error(t, err)

	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
	assert.LessOrEqual(t, len(extractErr.Preview), previewLimit)
	assert.True(t, strings.HasSuffix(extractErr.Preview, "..."))
}

func TestRepairPasses_Idempotent(t *testing.T) {
	inputs := []string{
		`{'a': 'b', "c": [1, 2,], // note` + "\n" + `}`,
		`{"text": "// not a comment, honest", "n": 1,}`,
		`{'nested': {'deep': [True, None,]},}`,
		`plain text with no json at all`,
	}

	passes := map[string]func(string) string{
		"normalizeQuotes":      normalizeQuotes,
		"removeTrailingCommas": removeTrailingCommas,
		"stripComments":        stripComments,
	}

	for name, pass := range passes {
		for _, input := range inputs {
			once := pass(input)
			twice := pass(once)
			assert.Equal(t, once, twice, "%s not idempotent on %q", name, input)
		}
	}
}

func TestStripComments_QuoteAware(t *testing.T) {
	input := `{"url": "https://example.com/path", "note": "// not a comment", // real comment` + "\n" + `"block": "/* kept */" /* gone */}`

	out := stripComments(input)

	assert.Contains(t, out, `"https://example.com/path"`)
	assert.Contains(t, out, `"// not a comment"`)
	assert.Contains(t, out, `"/* kept */"`)
	assert.NotContains(t, out, "real comment")
	assert.NotContains(t, out, "gone")
}

func TestRemoveTrailingCommas_Fixpoint(t *testing.T) {
	assert.Equal(t, `{"a": [1]}`, removeTrailingCommas(`{"a": [1,],}`))
	assert.Equal(t, `{"a": [1]}`, removeTrailingCommas(`{"a": [1,,],}`))
	assert.Equal(t, `{"a": ",}"}`, removeTrailingCommas(`{"a": ",}"}`))
}

func TestNormalizeQuotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `{'a': 'b'}`, `{"a": "b"}`},
		{"keeps double quoted apostrophe", `{"a": "don't"}`, `{"a": "don't"}`},
		{"escapes embedded double quote", `{'a': 'say "hi"'}`, `{"a": "say \"hi\""}`},
		{"drops single quote escape", `{'a': 'it\'s'}`, `{"a": "it's"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeQuotes(tt.in))
		})
	}
}

func TestBalancedRegion(t *testing.T) {
	region, ok := balancedRegion(`{"a": "}", "b": ['}']} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "}", "b": ['}']}`, region)

	region, ok = balancedRegion(`{"a": "\"}", "b": 1} extra`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "\"}", "b": 1}`, region)

	_, ok = balancedRegion(`{"never": "closes"`)
	assert.False(t, ok)
}
