package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestSecurityHeaders_StaticHeaders(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
		{"Cross-Origin-Resource-Policy", "same-origin"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			okHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Header().Get(tt.header))
		})
	}
}

func TestSecurityHeaders_CSP_AllDirectives(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	okHandler().ServeHTTP(rec, req)

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{"default-src 'none'", "frame-ancestors 'none'", "base-uri 'none'", "form-action 'none'"} {
		assert.Contains(t, csp, directive)
	}
	assert.Len(t, strings.Split(csp, "; "), 4)
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name    string
		proto   string
		tls     bool
		wantSet bool
	}{
		{name: "plain http", wantSet: false},
		{name: "forwarded https", proto: "https", wantSet: true},
		{name: "forwarded http", proto: "http", wantSet: false},
		{name: "direct tls", tls: true, wantSet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()

			okHandler().ServeHTTP(rec, req)

			hsts := rec.Header().Get("Strict-Transport-Security")
			if tt.wantSet {
				assert.Equal(t, "max-age=31536000; includeSubDomains", hsts)
			} else {
				assert.Empty(t, hsts)
			}
		})
	}
}

func TestSecurityHeaders_PassesThrough(t *testing.T) {
	called := false
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}
