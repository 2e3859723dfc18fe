package plan

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

var scriptInvocationRegex = regexp.MustCompile(`\b(?:npm|pnpm|bun)\s+run\s+([\w:.-]+)|\byarn\s+(?:run\s+)?([\w:.-]+)`)

// yarn subcommands that are not script names.
var yarnBuiltins = map[string]bool{
	"install": true, "add": true, "remove": true, "init": true,
	"upgrade": true, "link": true, "unlink": true, "pack": true,
	"publish": true, "audit": true, "why": true,
}

// MissingScripts cross-references script invocations in command steps
// against manifest declarations in file_edit steps. It returns the script
// names that are invoked but never defined, sorted for determinism. A
// non-empty result is a repairable gap, not a validation failure.
func MissingScripts(p *Plan) []string {
	invoked := map[string]bool{}
	for _, step := range p.Steps {
		if step.Type != StepTypeCommand {
			continue
		}
		for _, m := range scriptInvocationRegex.FindAllStringSubmatch(step.Command, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
				if yarnBuiltins[name] {
					continue
				}
			}
			invoked[name] = true
		}
	}
	if len(invoked) == 0 {
		return nil
	}

	declared := map[string]bool{}
	for _, step := range p.Steps {
		if step.Type != StepTypeFileEdit || path.Base(step.Path) != "package.json" {
			continue
		}
		for name := range manifestScripts(step.NewContent) {
			declared[name] = true
		}
	}

	var missing []string
	for name := range invoked {
		if !declared[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

var manifestKeyRegex = regexp.MustCompile(`"([\w:.-]+)"\s*:`)

// manifestScripts pulls the scripts map out of package.json content. When
// the content does not parse as JSON a substring check keeps the scan
// from flagging scripts the model clearly wrote down; the scan stops at
// the scripts object's closing brace so keys from later sections never
// count as script declarations.
func manifestScripts(content string) map[string]bool {
	var manifest struct {
		Scripts map[string]any `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err == nil && manifest.Scripts != nil {
		names := make(map[string]bool, len(manifest.Scripts))
		for name := range manifest.Scripts {
			names[name] = true
		}
		return names
	}

	names := map[string]bool{}
	idx := strings.Index(content, `"scripts"`)
	if idx < 0 {
		return names
	}
	section := content[idx+len(`"scripts"`):]
	open := strings.Index(section, "{")
	if open < 0 {
		return names
	}
	section = section[open+1:]
	if end := strings.Index(section, "}"); end >= 0 {
		section = section[:end]
	}
	for _, m := range manifestKeyRegex.FindAllStringSubmatch(section, -1) {
		names[m[1]] = true
	}
	return names
}

// SynthesizeManifestStep builds a minimal package.json edit declaring the
// given scripts. The orchestrator uses this as a last resort when the model
// will not add the declaration itself.
func SynthesizeManifestStep(scripts []string) Step {
	entries := make(map[string]string, len(scripts))
	for _, name := range scripts {
		entries[name] = fmt.Sprintf("echo \"%s script is not defined yet\" && exit 1", name)
	}
	content, _ := json.MarshalIndent(map[string]any{"scripts": entries}, "", "  ")

	return Step{
		Type:        StepTypeFileEdit,
		Path:        "package.json",
		NewContent:  string(content) + "\n",
		Description: fmt.Sprintf("declare missing script(s): %s", strings.Join(scripts, ", ")),
	}
}

// EmptyPlan builds a stepless plan from a parsed value. Used when an
// empty-but-valid plan survives its one repair retry and is surfaced to the
// caller with a warning instead of an error.
func EmptyPlan(value any) *Plan {
	p := &Plan{}
	if obj, ok := value.(map[string]any); ok {
		p.Summary, _ = obj["summary"].(string)
	}
	return p
}
