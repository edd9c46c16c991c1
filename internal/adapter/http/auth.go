package http

import (
	"net/http"
	"strings"
)

type TokenValidator interface {
	Enabled() bool
	ValidateToken(token string) error
}

// TokenAuth requires a matching bearer token when auth is enabled.
func TokenAuth(auth TokenValidator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth == nil || !auth.Enabled() {
			next(w, r)
			return
		}

		if err := auth.ValidateToken(bearerToken(r)); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="imgbatch"`)
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
