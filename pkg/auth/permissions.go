package auth

import "sort"

// Permission is a coarse-grained capability string, e.g. "write:templates"
// or "admin:keys".
type Permission string

const (
	PermReadAll       Permission = "read"
	PermWriteCaptures Permission = "write:captures"
	PermWriteTemplate Permission = "write:templates"
	PermAdminKeys     Permission = "admin:keys"
	PermAdminUsers    Permission = "admin:users"
)

// matrix is the fixed permission set granted to each role.
var matrix = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermReadAll:       true,
		PermWriteCaptures: true,
		PermWriteTemplate: true,
		PermAdminKeys:     true,
		PermAdminUsers:    true,
	},
	RoleOperator: {
		PermReadAll:       true,
		PermWriteCaptures: true,
		PermWriteTemplate: true,
	},
	RoleReadonly: {
		PermReadAll: true,
	},
}

// HasPermission reports whether role carries perm.
func HasPermission(role Role, perm Permission) bool {
	return matrix[role][perm]
}

// PermissionsFor returns every permission string granted to role, sorted
// for stable display (used by /auth/validate's reflected metadata).
func PermissionsFor(role Role) []Permission {
	var out []Permission
	for p := range matrix[role] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
