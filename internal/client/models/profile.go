package models

import "time"

// Profile is the row in the hosted profiles table keyed by user id.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Complete reports profile completeness: the record exists and carries a
// non-empty display name. Always derived, never persisted.
func (p *Profile) Complete() bool {
	return p != nil && p.FullName != ""
}

// StoredRole returns the role column as a Role, RoleUnknown when the value
// is absent or unrecognized.
func (p *Profile) StoredRole() Role {
	if p == nil {
		return RoleUnknown
	}
	role, _ := ParseRole(p.Role)
	return role
}
