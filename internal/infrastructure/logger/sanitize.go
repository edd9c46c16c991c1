package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxLogValueLength caps a single manifest-supplied value in a log line.
const maxLogValueLength = 512

// SanitizeForLog escapes control characters in values that come from uploaded
// manifests (titles, image URLs, webhook endpoints) so they cannot forge log
// entries or drive the terminal. Unicode text is kept as is. Values longer
// than maxLogValueLength are cut and marked with "...".
func SanitizeForLog(s string) string {
	truncated := false
	if len(s) > maxLogValueLength {
		cut := maxLogValueLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
		truncated = true
	}

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		case '\x00':
			result.WriteString("\\x00")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}

	if truncated {
		result.WriteString("...")
	}
	return result.String()
}

// SanitizeAll applies SanitizeForLog to each value and joins them with ", ".
func SanitizeAll(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = SanitizeForLog(v)
	}
	return strings.Join(out, ", ")
}
