package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a := New(TypeStatus, "one", nil)
	b := New(TypeStatus, "two", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNDJSONSink_OneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(&buf)

	sink.Emit(New(TypeStatus, "selecting candidate", map[string]any{"candidate": "Openai: gpt-4.1"}))
	sink.Emit(New(TypeError, "parse failed", map[string]any{"preview": "not json"}))
	sink.Emit(New(TypePlan, "plan ready", nil))

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 3)

	for _, line := range lines {
		var event Event
		require.NoError(t, json.Unmarshal([]byte(line), &event), "line is not valid JSON: %s", line)
		assert.NotEmpty(t, event.ID)
		assert.NotEmpty(t, event.Type)
	}
}

func TestNDJSONSink_MultilineMessageStaysOneLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(&buf)

	sink.Emit(New(TypeError, "bad output:\nline two\nline three", nil))

	out := strings.TrimRight(buf.String(), "\n")
	assert.NotContains(t, out, "\n", "event must serialize to a single line")
}

func TestRecorder_PreservesOrder(t *testing.T) {
	var rec Recorder
	rec.Emit(New(TypeStatus, "first", nil))
	rec.Emit(New(TypeReasoning, "second", nil))
	rec.Emit(New(TypePlan, "third", nil))

	got := rec.Events()
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
	assert.Equal(t, "third", got[2].Message)
}

func TestMulti_FansOut(t *testing.T) {
	var a, b Recorder
	sink := Multi{&a, &b}

	sink.Emit(New(TypeStatus, "hello", nil))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
