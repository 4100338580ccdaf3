// Package security validates untrusted request input and sanitizes it for
// logging.
package security

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// MaxPathLength is the maximum length of a file path in bytes.
const MaxPathLength = 4096

// ValidatePath checks a path naming a revision. Paths are labels rather
// than file system locations, so absolute paths and ".." are accepted.
func ValidatePath(path string) error {
	if path == "" {
		return fieldError("path", "path is required")
	}
	if strings.ContainsRune(path, 0) {
		return fieldError("path", "path contains a null byte")
	}
	if len(path) > MaxPathLength {
		return fieldError("path", "path is longer than 4096 bytes")
	}
	if !utf8.ValidString(path) {
		return fieldError("path", "path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fieldError("path", "path contains control characters: "+SanitizeForLog(path))
		}
	}
	return nil
}

// SanitizeForLog escapes line breaks, drops other control characters and
// truncates s to 200 runes.
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, 200)
}

// SanitizeForLogWithLength is SanitizeForLog with a custom length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			if !unicode.IsControl(r) {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}

func fieldError(field, msg string) error {
	return errors.ValidationError(msg).WithDetail("field", field)
}
