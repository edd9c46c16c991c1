package service

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakToken    = errors.New("token must be at least 16 characters")
)

const minTokenLength = 16

// TokenAuth guards submissions with a shared API token. Only the bcrypt hash
// of the token is configured; an empty hash disables the check.
type TokenAuth struct {
	hash []byte
}

func NewTokenAuth(hash string) *TokenAuth {
	return &TokenAuth{hash: []byte(strings.TrimSpace(hash))}
}

func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

func (a *TokenAuth) ValidateToken(token string) error {
	if !a.Enabled() {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// HashToken produces the value to put in API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if len(token) < minTokenLength {
		return "", ErrWeakToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
