package validation

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the maximum allowed filename length (common filesystem limit).
const maxFilenameLength = 255

// dangerousChars can break Content-Disposition quoting or escape the scratch directory.
var dangerousChars = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'?':  true,
	'*':  true,
	'\n': true,
	'\r': true,
}

// SanitizeFilename makes name safe for Content-Disposition headers and file
// paths. Dangerous characters and control characters become underscores,
// Unicode is kept, and the result is cut to 255 bytes with the extension
// preserved. Empty input yields "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		if shouldReplace(r) {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())
	if result == "" || isOnly(result, '_') || isOnly(result, '.') {
		return "file"
	}

	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}
	return result
}

// ScratchName derives the on-disk name of a compressed image from the job's
// request token and the source URL's last path segment.
func ScratchName(requestID, rawURL string) string {
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		base = u.Path
	}
	base = path.Base(base)
	if base == "." || base == "/" {
		base = ""
	}
	return SanitizeFilename(requestID + "_" + base)
}

func shouldReplace(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	return dangerousChars[r]
}

func isOnly(s string, c rune) bool {
	for _, r := range s {
		if r != c {
			return false
		}
	}
	return true
}

func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	extLen := len(ext)

	if extLen == 0 || extLen >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}

	baseName := name[:len(name)-extLen]
	return truncateToBytes(baseName, maxFilenameLength-extLen) + ext
}

// truncateToBytes cuts s to at most maxBytes without splitting a rune.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// ContentDisposition returns an attachment header value for a report download.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", SanitizeFilename(filename))
}
