// Package gateway contains the client-side contract for the hosted identity
// provider.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Gateway interface) covering
//     session retrieval, sign-in, sign-up, sign-out, user-metadata updates,
//     password recovery, and the auth-state-change event stream.
//  2. A concrete HTTP implementation (see HTTPGateway) that talks to a
//     GoTrue-style REST API, schedules token refresh ahead of expiry, and
//     maps HTTP statuses to sentinel errors.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrInvalidCredentials, ErrUserExists,
// ErrNoSession.
//
// # Concurrency & Contexts
//
// HTTPGateway is safe for concurrent use. The event channel has exactly one
// consumer (the session controller); events are delivered in the order the
// gateway observed them. All operations accept context.Context and honor
// cancellation/timeouts.
package gateway

import (
	"context"

	"github.com/carelinkhq/carelink/internal/client/models"
)

// Gateway is the auth surface of the hosted identity provider consumed by
// the session controller.
type Gateway interface {
	// Session returns the currently known session, or (nil, nil) when the
	// client is anonymous.
	Session(ctx context.Context) (*models.Session, error)

	// SignIn authenticates with email/password credentials.
	SignIn(ctx context.Context, email, password string) (*models.Session, error)

	// SignUp creates an account. meta is attached as sign-up user metadata
	// (role, display name). Providers that require email confirmation return
	// (nil, nil); auto-confirming providers return the new session.
	SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*models.Session, error)

	// SignOut revokes the current session at the provider.
	SignOut(ctx context.Context) error

	// UpdateUser replaces the user's sign-up metadata.
	UpdateUser(ctx context.Context, meta models.UserMetadata) (*models.User, error)

	// ResetPassword starts the provider's password-recovery flow; the email
	// links back to redirectTo.
	ResetPassword(ctx context.Context, email, redirectTo string) error

	// Events is the auth-state-change stream. It is closed by Close.
	Events() <-chan models.AuthEvent

	// Close releases resources and stops background refresh.
	Close() error
}
