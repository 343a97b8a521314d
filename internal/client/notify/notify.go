// Package notify abstracts user-facing toast messages away from the session
// logic that raises them.
package notify

import "context"

// Notifier surfaces short status messages to the user.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Info(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// Nop returns a Notifier that discards everything.
func Nop() Notifier { return nop{} }

type nop struct{}

func (nop) Success(context.Context, string) {}
func (nop) Info(context.Context, string)    {}
func (nop) Error(context.Context, string)   {}
