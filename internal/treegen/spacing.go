package treegen

import "bytes"

var lineBreak = []byte("\n")

// spacingBetween returns text[from:to] when the range is non-empty.
func spacingBetween(text []byte, from, to int) (string, bool) {
	if from >= to {
		return "", false
	}
	return string(text[from:to]), true
}

// isBlank reports whether s holds only whitespace and escaped line breaks.
// Anything else leaking into spacing usually comes from a grammar that does
// not expose some tokens.
func isBlank(s string) bool {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escaped && (c == '\n' || c == '\r'):
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
		default:
			return false
		}
	}
	return !escaped
}

// indentation returns the whitespace following the last line break of
// text[paddingStart:pos], or parent when that range has no line break.
func indentation(text []byte, pos, paddingStart int, parent string) string {
	if paddingStart >= pos {
		return parent
	}
	spaces := text[paddingStart:pos]
	i := bytes.LastIndex(spaces, lineBreak)
	if i < 0 {
		return parent
	}
	return string(spaces[i+len(lineBreak):])
}
