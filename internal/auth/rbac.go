package auth

import "strings"

type Role string

const (
	// RoleAdminPortal is carried by the admin portal's webhook calls.
	RoleAdminPortal Role = "admin-portal"
	// RoleOperator may trigger reconciliation and read sync status.
	RoleOperator Role = "operator"
)

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdminPortal):
		return RoleAdminPortal
	case string(RoleOperator):
		return RoleOperator
	default:
		return ""
	}
}

func HasRole(role string, allowed ...Role) bool {
	current := NormalizeRole(role)
	if current == "" {
		return false
	}
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}
