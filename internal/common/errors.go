// Package common defines shared constants and sentinel errors used across
// CareLink client components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Flow-control errors (generic/internal).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrTimeout is reported when the loading watchdog fires before an
	// operation settles.
	ErrTimeout = errors.New("operation timed out")
)
