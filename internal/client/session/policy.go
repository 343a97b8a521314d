package session

import (
	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/client/routes"
)

// Input is a read-only snapshot of everything the redirection decision
// depends on. The controller assembles it after a session settles; Decide
// itself performs no I/O.
type Input struct {
	UserID          string
	Role            models.Role
	ProfileComplete bool

	// IntendedRole is the durable registration hint captured at sign-up
	// time. It is a fallback only; an embedded role always wins.
	IntendedRole models.Role

	// Pending slots, read without clearing. The controller clears the one
	// the decision consumes.
	PendingUpvote      string
	PendingBookingPath string
	PendingMessagePath string
	PendingProfilePath string
}

// DecisionKind names the branch the policy took.
type DecisionKind string

const (
	DecideNone         DecisionKind = "none"
	DecideRegistration DecisionKind = "registration"
	DecideReplayUpvote DecisionKind = "replayUpvote"
	DecideReplayPath   DecisionKind = "replayPath"
	DecideDashboard    DecisionKind = "dashboard"
	DecideHome         DecisionKind = "home"
)

// Decision is the outcome of one redirection evaluation.
type Decision struct {
	Kind DecisionKind

	// Path is the navigation target. Empty only for DecideNone.
	Path string

	// FeatureID carries the vote to replay for DecideReplayUpvote.
	FeatureID string

	// Slot is the pending marker the controller must clear after acting,
	// set for DecideReplayUpvote and DecideReplayPath.
	Slot ledger.Slot
}

// Decide maps the settled session facts to a navigation decision. First
// match wins:
//
//  1. incomplete profile → registration (role, else intended role, else
//     the family default); pending actions are not consulted yet
//  2. pending feature upvote → replay it, then the family dashboard
//  3. pending booking/message/profile-update path, in that order → that path
//  4. known role → its dashboard
//  5. otherwise → home
//
// Callers must only invoke Decide when a user is present.
func Decide(in Input) Decision {
	if in.UserID == "" {
		return Decision{Kind: DecideNone}
	}

	if !in.ProfileComplete {
		role := in.Role
		if !role.Known() {
			role = in.IntendedRole
		}
		return Decision{Kind: DecideRegistration, Path: routes.Registration(role)}
	}

	if in.PendingUpvote != "" {
		return Decision{
			Kind:      DecideReplayUpvote,
			Path:      routes.Dashboard(models.RoleFamily),
			FeatureID: in.PendingUpvote,
			Slot:      ledger.SlotPendingUpvote,
		}
	}

	for _, p := range []struct {
		value string
		slot  ledger.Slot
	}{
		{in.PendingBookingPath, ledger.SlotPendingBookingPath},
		{in.PendingMessagePath, ledger.SlotPendingMessagePath},
		{in.PendingProfilePath, ledger.SlotPendingProfilePath},
	} {
		if p.value != "" {
			return Decision{Kind: DecideReplayPath, Path: p.value, Slot: p.slot}
		}
	}

	if in.Role.Known() {
		return Decision{Kind: DecideDashboard, Path: routes.Dashboard(in.Role)}
	}

	return Decision{Kind: DecideHome, Path: routes.Home}
}
