// Package auth implements the static API key check guarding predictions.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// HeaderName is the request header carrying the API key
const HeaderName = "X-API-Key"

// Reason explains why a token was rejected
type Reason string

const (
	// ReasonMissing means no token was supplied
	ReasonMissing Reason = "missing"
	// ReasonMismatch means a token was supplied but does not match the secret
	ReasonMismatch Reason = "mismatch"
)

// UnauthorizedError is returned by Gate.Authorize when a token is rejected
type UnauthorizedError struct {
	Reason Reason
}

func (e *UnauthorizedError) Error() string {
	switch e.Reason {
	case ReasonMissing:
		return "unauthorized: missing API key"
	case ReasonMismatch:
		return "unauthorized: invalid API key"
	default:
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
}

// Gate compares caller tokens against the configured secret.
// It is immutable and safe for concurrent use.
type Gate struct {
	secret []byte
}

// NewGate creates a gate for secret, which must not be empty
func NewGate(secret string) (*Gate, error) {
	if secret == "" {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Gate{secret: []byte(secret)}, nil
}

// Authorize returns nil if token exactly equals the secret.
// Otherwise it returns an *UnauthorizedError whose Reason tells a missing
// token apart from a wrong one.
func (g *Gate) Authorize(token string) error {
	if token == "" {
		return &UnauthorizedError{Reason: ReasonMissing}
	}
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return &UnauthorizedError{Reason: ReasonMismatch}
	}
	return nil
}

// String never includes the secret
func (g *Gate) String() string {
	return "auth.Gate{secret: [redacted]}"
}

// ReasonOf extracts the rejection reason from err, if it is an *UnauthorizedError
func ReasonOf(err error) (Reason, bool) {
	var uerr *UnauthorizedError
	if errors.As(err, &uerr) {
		return uerr.Reason, true
	}
	return "", false
}

// IsMissing reports whether err rejects a missing token
func IsMissing(err error) bool {
	r, ok := ReasonOf(err)
	return ok && r == ReasonMissing
}

// IsMismatch reports whether err rejects a wrong token
func IsMismatch(err error) bool {
	r, ok := ReasonOf(err)
	return ok && r == ReasonMismatch
}
