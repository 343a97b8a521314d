package models

// Role determines which dashboard and registration flow a user is routed to.
// Once resolved for a session it never changes; there is no role-change flow.
type Role string

const (
	RoleFamily       Role = "family"
	RoleProfessional Role = "professional"
	RoleCommunity    Role = "community"
	RoleAdmin        Role = "admin"

	// RoleUnknown marks a session whose role could not be resolved.
	RoleUnknown Role = ""
)

// ParseRole maps a raw string to a Role. Unrecognized values come back as
// RoleUnknown with ok=false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleFamily, RoleProfessional, RoleCommunity, RoleAdmin:
		return Role(s), true
	default:
		return RoleUnknown, false
	}
}

func (r Role) Known() bool {
	return r != RoleUnknown
}

func (r Role) String() string {
	return string(r)
}
