// Package ledger implements the durable pending-action store: a small set of
// named slots that survive process restarts. A slot holds at most one value;
// writing overwrites. Slots are consumed with read-and-clear semantics so a
// pending action can never replay twice.
package ledger

import "context"

// Slot names every durable key the auth flow is allowed to touch. Keeping
// them typed here centralizes the read-and-clear discipline instead of
// scattering string literals across call sites.
type Slot string

const (
	// Captured user intent, replayed after authentication.
	SlotPendingUpvote      Slot = "pending_upvote_feature"
	SlotPendingBookingPath Slot = "pending_booking_path"
	SlotPendingMessagePath Slot = "pending_message_path"
	SlotPendingProfilePath Slot = "pending_profile_update_path"
	SlotLastAction         Slot = "last_action"
	SlotLastActionRedirect Slot = "last_action_redirect"

	// Registration routing hints.
	SlotRegisteringAs Slot = "registering_as"
	SlotIntendedRole  Slot = "intended_registration_role"

	// Diagnostics and recovery breadcrumbs.
	SlotAuthError       Slot = "auth_state_error"
	SlotTimeoutRecovery Slot = "auth_timeout_recovery"
	SlotLastAuthState   Slot = "last_auth_state"
)

// AuthSlots lists every slot wiped by Clear. Other application keys sharing
// the same table are left alone.
var AuthSlots = []Slot{
	SlotPendingUpvote,
	SlotPendingBookingPath,
	SlotPendingMessagePath,
	SlotPendingProfilePath,
	SlotLastAction,
	SlotLastActionRedirect,
	SlotRegisteringAs,
	SlotIntendedRole,
	SlotAuthError,
	SlotTimeoutRecovery,
	SlotLastAuthState,
}

// Ledger is the typed interface over the durable key/value store.
//
// Contract:
//   - Get: returns the slot value, "" when absent, never an error for absence.
//   - Set: writes the value, overwriting any previous one.
//   - Take: atomically reads and clears the slot ("" when it was absent).
//   - Delete: clears one slot.
//   - Clear: clears every slot in AuthSlots.
//
// All methods must honor context cancellation/timeouts.
type Ledger interface {
	Get(ctx context.Context, slot Slot) (string, error)
	Set(ctx context.Context, slot Slot, value string) error
	Take(ctx context.Context, slot Slot) (string, error)
	Delete(ctx context.Context, slot Slot) error
	Clear(ctx context.Context) error
}
