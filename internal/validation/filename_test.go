package validation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "shoe.jpg", "shoe.jpg"},
		{"spaces kept", "red shoe.jpg", "red shoe.jpg"},
		{"unicode kept", "chaussure-été.jpg", "chaussure-été.jpg"},
		{"double quote", `a"b.jpg`, "a_b.jpg"},
		{"backslash", `a\b.jpg`, "a_b.jpg"},
		{"slash", "a/b.jpg", "a_b.jpg"},
		{"query chars", "a?b*.jpg", "a_b_.jpg"},
		{"CRLF", "a\r\nb.jpg", "a__b.jpg"},
		{"NUL", "a\x00b", "a_b"},
		{"DEL", "a\x7fb", "a_b"},
		{"path traversal", "../../etc/passwd", ".._.._etc_passwd"},
		{"empty", "", "file"},
		{"whitespace", "   ", "file"},
		{"only dangerous", `"/\:`, "file"},
		{"only dots", "..", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_LongFilenames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".jpeg"
	result := SanitizeFilename(long)
	assert.Len(t, result, maxFilenameLength)
	assert.True(t, strings.HasSuffix(result, ".jpeg"))

	noExt := strings.Repeat("é", 200)
	result = SanitizeFilename(noExt)
	assert.LessOrEqual(t, len(result), maxFilenameLength)
	assert.True(t, utf8.ValidString(result))
}

func TestScratchName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"basename of path", "https://cdn.example.com/products/shoe.jpg", "req-1_shoe.jpg"},
		{"query dropped", "https://cdn.example.com/a/b.png?w=200&h=100", "req-1_b.png"},
		{"no path", "https://cdn.example.com", "req-1_"},
		{"trailing slash", "https://cdn.example.com/images/", "req-1_images"},
		{"not a url", "shoe 1.jpg", "req-1_shoe 1.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScratchName("req-1", tt.url))
		})
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="output_abc.csv"`, ContentDisposition("output_abc.csv"))
	assert.Equal(t, `attachment; filename="file"`, ContentDisposition(""))

	for _, name := range []string{`x".csv`, "a\r\nSet-Cookie: y", `\"\"`} {
		result := ContentDisposition(name)
		inner := strings.TrimSuffix(strings.TrimPrefix(result, `attachment; filename="`), `"`)
		assert.NotContains(t, inner, `"`)
		assert.NotContains(t, result, "\n")
	}
}
