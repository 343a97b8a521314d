// Package models holds the client-side data records shared by the gateway,
// the stores, and the session controller.
package models

import "time"

// UserMetadata is the free-form metadata attached to a user at sign-up time
// by the identity provider. The embedded role, when present, is authoritative
// over the profile table (it avoids a network round trip).
type UserMetadata struct {
	Role     string `json:"role,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// User is the identity record owned by the remote identity provider.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// EmbeddedRole returns the role recorded in the user's sign-up metadata,
// or RoleUnknown when absent or unrecognized.
func (u *User) EmbeddedRole() Role {
	if u == nil {
		return RoleUnknown
	}
	role, _ := ParseRole(u.Metadata.Role)
	return role
}

// Session is the credential bundle issued by the identity provider. The
// client holds a read-only cached copy; the provider owns the lifecycle
// (created on sign-in, replaced on refresh, cleared on sign-out).
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// UserID returns the owning user id, or "" for a nil session.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
