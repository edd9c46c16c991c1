package logger

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain url unchanged", "https://cdn.example.com/shoe-1.jpg", "https://cdn.example.com/shoe-1.jpg"},
		{"empty string", "", ""},
		{"title with quotes", `Shoe "Runner" (red)`, `Shoe "Runner" (red)`},
		{"newline escaped", "line1\nline2", "line1\\nline2"},
		{"carriage return escaped", "line1\rline2", "line1\\rline2"},
		{"CRLF escaped", "line1\r\nline2", "line1\\r\\nline2"},
		{"tab escaped", "col1\tcol2", "col1\\tcol2"},
		{"null byte escaped", "before\x00after", "before\\x00after"},
		{"ANSI escape code escaped", "text\x1b[31mred\x1b[0mnormal", "text\\x1b[31mred\\x1b[0mnormal"},
		{"bell character escaped", "alert\x07bell", "alert\\x07bell"},
		{"DEL character escaped", "delete\x7fchar", "delete\\x7fchar"},
		{"unicode preserved", "Chaussure café 中文 👟", "Chaussure café 中文 👟"},
		{"fake log entry injection", "https://x.test/a.jpg\nERROR: fake", "https://x.test/a.jpg\\nERROR: fake"},
		{"terminal clear attempt", "\x1b[2Jcleared", "\\x1b[2Jcleared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}

func TestSanitizeForLog_AllControlChars(t *testing.T) {
	for i := 0; i < 32; i++ {
		result := SanitizeForLog(string(rune(i)))
		assert.True(t, strings.HasPrefix(result, "\\"), "control char 0x%02x not escaped: %q", i, result)
	}
	assert.Equal(t, "\\x7f", SanitizeForLog(string(rune(127))))
}

func TestSanitizeForLog_Truncates(t *testing.T) {
	long := "https://cdn.example.com/" + strings.Repeat("é", maxLogValueLength)

	result := SanitizeForLog(long)

	assert.True(t, strings.HasSuffix(result, "..."))
	assert.LessOrEqual(t, len(result), maxLogValueLength+3)
	assert.True(t, utf8.ValidString(result), "truncation must not split a rune")
}

func TestSanitizeAll(t *testing.T) {
	got := SanitizeAll([]string{"https://a.test/1.jpg", "bad\nurl"})
	assert.Equal(t, "https://a.test/1.jpg, bad\\nurl", got)
	assert.Equal(t, "", SanitizeAll(nil))
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	Info.Printf("job %s queued", "abc")
	Error.Printf("boom")

	out := buf.String()
	assert.Contains(t, out, "INFO: ")
	assert.Contains(t, out, "job abc queued")
	assert.Contains(t, out, "ERROR: ")
}

func BenchmarkSanitizeForLog(b *testing.B) {
	testCases := []struct {
		name  string
		input string
	}{
		{"short_clean", "https://a.test/x.jpg"},
		{"with_newlines", "title\nwith\nnewlines"},
		{"unicode", "中文_日本語_emoji_👋"},
		{"mixed_attack", "x.jpg\nERROR: fake\x1b[31mred\x1b[0m"},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = SanitizeForLog(tc.input)
			}
		})
	}
}
