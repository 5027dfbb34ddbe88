package models

// Role is a named authority attached to an account. Roles are plain data,
// stored as a set on the user row; there is no separate authority entity.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// AllRoles is the full authority set granted to the seeded superadmin.
var AllRoles = []Role{RoleUser, RoleAdmin, RoleSuperadmin}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func RolesFromStrings(values []string) []Role {
	out := make([]Role, len(values))
	for i, v := range values {
		out[i] = Role(v)
	}
	return out
}
