package models

// Capabilities granted by a membership.
const (
	PermRead     = "read"
	PermWrite    = "write"
	PermDelete   = "delete"
	PermModerate = "moderate"
	PermManage   = "manage"
)

var (
	memberPerms    = []string{PermRead, PermWrite}
	moderatorPerms = append(append([]string{}, memberPerms...), PermDelete, PermModerate)
	adminPerms     = append(append([]string{}, moderatorPerms...), PermManage)
)

// PermissionsFor maps a membership to its capability list.
// A missing or pending membership may only read public group details.
func PermissionsFor(m *Membership) []string {
	if !m.IsActive() {
		return []string{PermRead}
	}
	var perms []string
	switch m.Role {
	case RoleAdmin:
		perms = adminPerms
	case RoleModerator:
		perms = moderatorPerms
	default:
		perms = memberPerms
	}
	return append([]string(nil), perms...)
}

// HasPermission reports whether the membership grants perm.
func HasPermission(m *Membership, perm string) bool {
	for _, p := range PermissionsFor(m) {
		if p == perm {
			return true
		}
	}
	return false
}
