package models

import "strings"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCreator Role = "CREATOR"
	RoleTrial   Role = "TRIAL"
)

// JoinRoles renders roles as the comma separated column value.
func JoinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// SplitRoles parses a column value written by JoinRoles. Unknown names are
// dropped.
func SplitRoles(s string) []Role {
	var roles []Role
	for _, p := range strings.Split(s, ",") {
		switch r := Role(strings.TrimSpace(p)); r {
		case RoleAdmin, RoleCreator, RoleTrial:
			roles = append(roles, r)
		}
	}
	return roles
}
