// Package prompts holds the prompt text sent to models, including the
// corrective notes appended between retries.
package prompts

import (
	"fmt"
	"strings"
)

// PlanSystem is the system prompt for plan generation. It pins the exact
// output contract so the recovery parser has as little to repair as
// possible.
func PlanSystem() string {
	return `You are a software change planner. Respond with a single JSON object and nothing else: no prose, no markdown fences.

The object has this shape:
{
  "steps": [
    {"type": "file_edit", "path": "<file path>", "newContent": "<full new file content>", "oldContent": "<optional previous content>", "description": "<optional>"},
    {"type": "command", "command": "<shell command>", "description": "<optional>"}
  ],
  "summary": "<one sentence describing the change>"
}

Every step must be one of the two types above with its required fields filled in. Order steps so each can run after the ones before it.`
}

// PlanRequest wraps the user's request.
func PlanRequest(request string) string {
	return fmt.Sprintf("Produce a change plan for the following request:\n\n%s", request)
}

// CorrectiveNote quotes a specific failure back to the model together with
// a truncated preview of its previous output.
func CorrectiveNote(reason, preview string) string {
	var b strings.Builder
	b.WriteString("Your previous response could not be used: ")
	b.WriteString(reason)
	b.WriteString(".\n")
	if preview != "" {
		b.WriteString("It began with:\n")
		b.WriteString(preview)
		b.WriteString("\n")
	}
	b.WriteString("Respond again with only the JSON object described in the instructions.")
	return b.String()
}

// EmptyStepsNote is the stronger instruction used for the single retry
// after a structurally valid but stepless plan.
func EmptyStepsNote() string {
	return `Your previous response contained an empty "steps" array. The plan must contain at least one concrete step: a file_edit with the full new file content, or a command. Respond with the complete JSON object again, this time with the steps filled in.`
}

// ManifestRepairNote asks the model to declare scripts it invokes but
// never defines.
func ManifestRepairNote(missing []string) string {
	return fmt.Sprintf(`Your plan runs the script(s) %s but no file_edit step declares them in a package.json "scripts" section. Respond with the complete JSON object again, adding or updating a package.json file_edit step that defines each of these scripts.`,
		strings.Join(missing, ", "))
}
