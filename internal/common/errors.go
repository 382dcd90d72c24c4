// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Bad or missing input.
	ErrValidation = errors.New("validation error")

	// Duplicate account, already-used invitation, already-verified account.
	ErrConflict = errors.New("conflict")

	// OTP or token past its TTL.
	ErrExpired = errors.New("expired")

	// Reused or replayed refresh token.
	ErrAlreadyRevoked = errors.New("already revoked")

	// Identity mismatch on a sensitive operation.
	ErrForbidden = errors.New("forbidden")

	// A gated transition was attempted without its permission flag.
	ErrNotAllowed = fmt.Errorf("not allowed: %w", ErrForbidden)

	// Dependent storage or external verification failure.
	ErrUnavailable = errors.New("unavailable")

	// Access token errors.
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = fmt.Errorf("invalid signature: %w", ErrInvalidToken)
	ErrMalformedToken   = fmt.Errorf("malformed token: %w", ErrInvalidToken)
	ErrTokenExpired     = errors.New("token expired")
)

// Unavailable marks err as a storage or dependency failure while keeping it
// inspectable with errors.Is.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
