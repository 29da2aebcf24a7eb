package models

// Predefined role names. Roles are fixed; a user carries exactly one.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleViewer    = "viewer"
)

// Roles lists every valid role, lowest privilege first.
var Roles = []string{RoleViewer, RoleLibrarian, RoleAdmin}

// IsValidRole reports whether name is one of the predefined roles.
func IsValidRole(name string) bool {
	for _, r := range Roles {
		if r == name {
			return true
		}
	}
	return false
}
