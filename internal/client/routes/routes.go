// Package routes is the single table of application paths the session
// controller navigates to. Downstream views own everything else.
package routes

import "github.com/carelinkhq/carelink/internal/client/models"

const (
	Home = "/"
	Auth = "/auth"
)

// Dashboard returns the role's dashboard path; Home when the role is unknown.
func Dashboard(role models.Role) string {
	switch role {
	case models.RoleFamily:
		return "/dashboard/family"
	case models.RoleProfessional:
		return "/dashboard/professional"
	case models.RoleCommunity:
		return "/dashboard/community"
	case models.RoleAdmin:
		return "/dashboard/admin"
	default:
		return Home
	}
}

// Registration returns the role's registration path. Unknown roles fall back
// to the family flow, the product default for new sign-ups.
func Registration(role models.Role) string {
	switch role {
	case models.RoleProfessional:
		return "/registration/professional"
	case models.RoleCommunity:
		return "/registration/community"
	case models.RoleAdmin:
		return "/registration/admin"
	default:
		return "/registration/family"
	}
}
