package recovery

import (
	"fmt"
	"strings"
)

// normalizeQuotes rewrites single-quoted strings to double-quoted ones.
// Quote characters inside an existing double-quoted string are left alone,
// embedded double quotes gain an escape, and an escaped single quote loses
// one since it no longer needs it.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	const (
		outside = iota
		inDouble
		inSingle
	)
	state := outside
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch state {
		case outside:
			switch ch {
			case '"':
				state = inDouble
				b.WriteByte(ch)
			case '\'':
				state = inSingle
				b.WriteByte('"')
			default:
				b.WriteByte(ch)
			}

		case inDouble:
			if escaped {
				escaped = false
				b.WriteByte(ch)
				continue
			}
			switch ch {
			case '\\':
				escaped = true
				b.WriteByte(ch)
			case '"':
				state = outside
				b.WriteByte(ch)
			default:
				b.WriteByte(ch)
			}

		case inSingle:
			if escaped {
				escaped = false
				if ch == '\'' {
					b.WriteByte('\'') // \' is not a JSON escape, drop the backslash
				} else {
					b.WriteByte('\\')
					b.WriteByte(ch)
				}
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '\'':
				state = outside
				b.WriteByte('"')
			case '"':
				b.WriteString(`\"`)
			default:
				b.WriteByte(ch)
			}
		}
	}

	return b.String()
}

// removeTrailingCommas drops commas that directly precede a closing brace or
// bracket, repeating until a fixed point since removing one comma can expose
// another. Commas inside strings are untouched.
func removeTrailingCommas(s string) string {
	for {
		next := removeTrailingCommasOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func removeTrailingCommasOnce(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
		case ',':
			if next := nextSignificant(s, i+1); next == '}' || next == ']' {
				continue // drop the comma
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

// stripComments removes // line comments and /* */ block comments while
// preserving comment-looking text inside string values.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					i = len(s)
				} else {
					i += 2 + end + 1
				}
				continue
			}
		}

		b.WriteByte(ch)
	}

	return b.String()
}

// translateBarewords converts the Python literals True, False, and None to
// their JSON equivalents when they appear outside strings.
func translateBarewords(s string) string {
	replacements := map[string]string{
		"True":  "true",
		"False": "false",
		"None":  "null",
	}

	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if isWordByte(ch) {
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			word := s[i:j]
			if repl, ok := replacements[word]; ok {
				b.WriteString(repl)
			} else {
				b.WriteString(word)
			}
			i = j - 1
			continue
		}

		b.WriteByte(ch)
	}

	return b.String()
}

// escapeControlChars rewrites raw control bytes found inside strings to
// their JSON escape sequences. Models frequently emit literal newlines in
// multi-line file content.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if !inString {
			if ch == '"' {
				inString = true
			}
			b.WriteByte(ch)
			continue
		}

		if escaped {
			escaped = false
			b.WriteByte(ch)
			continue
		}

		switch {
		case ch == '\\':
			escaped = true
			b.WriteByte(ch)
		case ch == '"':
			inString = false
			b.WriteByte(ch)
		case ch == '\n':
			b.WriteString(`\n`)
		case ch == '\t':
			b.WriteString(`\t`)
		case ch == '\r':
			b.WriteString(`\r`)
		case ch < 0x20:
			b.WriteString(fmt.Sprintf(`\u%04x`, ch))
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

// aggressiveCleanup is the second-chance pass: trailing commas again (the
// earlier passes may have exposed new ones) plus comma insertion between
// adjacent closing and opening braces, e.g. "}{" becomes "},{".
func aggressiveCleanup(s string) string {
	s = removeTrailingCommas(s)

	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		b.WriteByte(ch)

		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '}', ']':
			if next := nextSignificant(s, i+1); next == '{' || next == '[' {
				b.WriteByte(',')
			}
		}
	}

	return b.String()
}

// insertMissingCommas inserts a comma wherever a value token is followed,
// across whitespace, by what looks like the next property key: an opening
// quote whose string is itself followed by a colon.
func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	var lastEnd byte // last significant byte outside strings, '"' for a closed string

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
				lastEnd = '"'
			}
			continue
		}

		if ch == '"' {
			if endsValue(lastEnd) && looksLikeKey(s, i) {
				b.WriteByte(',')
			}
			inString = true
			b.WriteByte(ch)
			continue
		}

		b.WriteByte(ch)
		if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\n' {
			lastEnd = ch
		}
	}

	return b.String()
}

// endsValue reports whether b can terminate a JSON value: a digit, a closing
// quote/brace/bracket, or the final letter of true, false, or null.
func endsValue(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b == '"' || b == '}' || b == ']' || b == 'e' || b == 'l':
		return true
	}
	return false
}

// looksLikeKey reports whether the string opening at s[i] is followed by a
// colon once it closes.
func looksLikeKey(s string, i int) bool {
	end := stringEnd(s, i)
	if end < 0 {
		return false
	}
	return nextSignificant(s, end+1) == ':'
}

// stringEnd returns the index of the closing quote for the string opening at
// s[i], honoring backslash escapes, or -1 if it never closes.
func stringEnd(s string, i int) int {
	escaped := false
	for j := i + 1; j < len(s); j++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[j] {
		case '\\':
			escaped = true
		case '"':
			return j
		}
	}
	return -1
}

// nextSignificant returns the first non-whitespace byte at or after s[i], or
// 0 when the rest of the text is whitespace.
func nextSignificant(s string, i int) byte {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
