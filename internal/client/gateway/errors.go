package gateway

import "errors"

var (
	ErrUnavailable        = errors.New("identity provider unavailable")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already registered")
	ErrNoSession          = errors.New("no active session")
)
