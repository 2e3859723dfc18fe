// Package recovery extracts a single JSON value from free-form LLM output.
//
// Models routinely wrap JSON in markdown fences, prefix it with narration,
// use Python literals, or leave trailing commas behind. The extractor locates
// the most plausible JSON region, runs a series of idempotent repair passes
// over it, and only then hands it to the strict parser.
package recovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// previewLimit caps the raw-text preview carried in results and errors so
// diagnostics never ship the full model payload.
const previewLimit = 600

// Result is a successfully extracted JSON value plus a capped preview of the
// raw text it came from.
type Result struct {
	Value   any
	Preview string
}

// ExtractError reports why no JSON value could be recovered.
type ExtractError struct {
	Reason  string
	Preview string
}

func (e *ExtractError) Error() string {
	return e.Reason
}

// Extract recovers a single JSON object or array from text. When
// requiredKeys is non-empty the parsed value must be an object containing
// every listed key, otherwise extraction fails even if parsing succeeded.
func Extract(text string, requiredKeys ...string) (*Result, error) {
	preview := Preview(text)

	trimmed := stripWrapping(text)
	if trimmed == "" {
		return nil, &ExtractError{Reason: "empty response", Preview: preview}
	}
	if !strings.ContainsAny(trimmed, "{[") {
		return nil, &ExtractError{Reason: "no JSON object or array found (no opening brace or bracket)", Preview: preview}
	}

	region, ok := locateRegion(trimmed, requiredKeys)
	if !ok {
		// A fully single-quoted payload can hide the region from the
		// scanner; normalize once and retry the whole locate step.
		normalized := normalizeQuotes(trimmed)
		region, ok = locateRegion(normalized, requiredKeys)
		if !ok {
			return nil, &ExtractError{Reason: "no JSON object or array found", Preview: preview}
		}
	}

	value, err := parseWithRepairs(region)
	if err != nil {
		return nil, &ExtractError{Reason: err.Error(), Preview: preview}
	}

	if len(requiredKeys) > 0 {
		if missing := missingKeys(value, requiredKeys); len(missing) > 0 {
			return nil, &ExtractError{
				Reason:  fmt.Sprintf("missing required keys: %s", strings.Join(missing, ", ")),
				Preview: preview,
			}
		}
	}

	return &Result{Value: value, Preview: preview}, nil
}

// parseWithRepairs runs the repair pipeline and up to three parse attempts:
// strict, after aggressive cleanup, and after the missing-comma heuristic.
func parseWithRepairs(region string) (any, error) {
	repaired := repair(region)

	var value any
	err := json.Unmarshal([]byte(repaired), &value)
	if err == nil {
		return value, nil
	}

	aggressive := aggressiveCleanup(repaired)
	if uErr := json.Unmarshal([]byte(aggressive), &value); uErr == nil {
		return value, nil
	} else {
		err = uErr
	}

	patched := insertMissingCommas(aggressive)
	if uErr := json.Unmarshal([]byte(patched), &value); uErr == nil {
		return value, nil
	} else {
		err = uErr
	}

	return nil, fmt.Errorf("malformed JSON after repair: %w", err)
}

// repair applies the ordered, individually idempotent repair passes.
func repair(region string) string {
	region = normalizeQuotes(region)
	region = removeTrailingCommas(region)
	region = stripComments(region)
	region = translateBarewords(region)
	region = escapeControlChars(region)
	return region
}

func missingKeys(value any, required []string) []string {
	obj, ok := value.(map[string]any)
	if !ok {
		return required
	}
	var missing []string
	for _, key := range required {
		if _, present := obj[key]; !present {
			missing = append(missing, key)
		}
	}
	return missing
}

// Preview returns a diagnostics-safe snippet of raw model output.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLimit {
		return text
	}
	return text[:previewLimit-3] + "..."
}
