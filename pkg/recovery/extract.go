package recovery

import (
	"regexp"
	"strings"
)

var fencedBlockRegex = regexp.MustCompile("(?s)\\A```[a-zA-Z0-9_+-]*\\s*\\n?(.*?)\\n?```\\s*\\z")

// stripWrapping removes a BOM, surrounding whitespace, and a single
// enclosing markdown fence. A dangling fence marker on only one side is
// stripped as well, which covers truncated responses.
func stripWrapping(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.TrimSpace(text)

	if m := fencedBlockRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag such as "json" on the opening fence.
		if idx := strings.IndexAny(text, "\n{["); idx >= 0 {
			tag := strings.TrimSpace(text[:idx])
			if tag != "" && !strings.ContainsAny(tag, "{}[]\"'") {
				text = text[idx:]
			}
		}
		text = strings.TrimSpace(text)
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}

	return text
}

// locateRegion finds the most plausible JSON start and scans a balanced
// region from it. Text before the start index is treated as narration and
// discarded.
func locateRegion(text string, requiredKeys []string) (string, bool) {
	start := findStart(text, requiredKeys)
	if start < 0 {
		return "", false
	}
	return balancedRegion(text[start:])
}

// findStart picks the start index by priority: a brace directly introducing
// one of the required keys, then a brace followed by a quote or bracket,
// then the first brace or bracket anywhere.
func findStart(text string, requiredKeys []string) int {
	for _, key := range requiredKeys {
		for _, quote := range []string{`"`, `'`} {
			if idx := bracePreceding(text, quote+key+quote); idx >= 0 {
				return idx
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		rest := strings.TrimLeft(text[i+1:], " \t\r\n")
		if rest != "" && (rest[0] == '"' || rest[0] == '\'' || rest[0] == '[') {
			return i
		}
	}

	return strings.IndexAny(text, "{[")
}

// bracePreceding returns the index of a '{' whose first token is marker,
// allowing whitespace between the brace and the marker.
func bracePreceding(text, marker string) int {
	from := 0
	for {
		rel := strings.Index(text[from:], marker)
		if rel < 0 {
			return -1
		}
		at := from + rel
		j := at - 1
		for j >= 0 && (text[j] == ' ' || text[j] == '\t' || text[j] == '\r' || text[j] == '\n') {
			j--
		}
		if j >= 0 && text[j] == '{' {
			return j
		}
		from = at + 1
	}
}

// balancedRegion scans text from index 0 and returns the shortest prefix in
// which brace/bracket nesting returns to zero. The scanner is quote-aware:
// both quote styles open a string, only the opening delimiter closes it, and
// backslash escapes are honored so an escaped quote never terminates early.
func balancedRegion(text string) (string, bool) {
	depth := 0
	inString := false
	var stringDelim byte
	escaped := false
	started := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case stringDelim:
				inString = false
			}
			continue
		}

		switch ch {
		case '"', '\'':
			inString = true
			stringDelim = ch
		case '{', '[':
			depth++
			started = true
		case '}', ']':
			depth--
			if started && depth <= 0 {
				return text[:i+1], true
			}
		}
	}

	return "", false
}
