package roles

import (
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

// Level is a required authorization level. Levels are ordered: a role that
// satisfies a level satisfies every level below it.
type Level int

const (
	AnyAuthenticated Level = iota + 1
	LibrarianOrAdmin
	AdminOnly
)

// Levels lists every level, lowest first.
var Levels = []Level{AnyAuthenticated, LibrarianOrAdmin, AdminOnly}

func (l Level) String() string {
	switch l {
	case AnyAuthenticated:
		return "any_authenticated"
	case LibrarianOrAdmin:
		return "librarian_or_admin"
	case AdminOnly:
		return "admin_only"
	default:
		return "unknown"
	}
}

// MarshalText renders a level by name in JSON payloads and error details.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// roleLevels is the highest level each role satisfies.
var roleLevels = map[string]Level{
	models.RoleViewer:    AnyAuthenticated,
	models.RoleLibrarian: LibrarianOrAdmin,
	models.RoleAdmin:     AdminOnly,
}

// LevelOf returns the highest level a role satisfies, or 0 for unknown roles.
func LevelOf(role string) Level {
	return roleLevels[role]
}

// Satisfies reports whether role meets the required level. Unknown roles and
// unknown levels never do.
func Satisfies(role string, required Level) bool {
	if required < AnyAuthenticated || required > AdminOnly {
		return false
	}
	return LevelOf(role) >= required
}

// Authorize returns nil when role meets the required level and a forbidden
// error otherwise. action names the operation for the error message, e.g.
// "Issuing a book".
func Authorize(role string, required Level, action string) error {
	if Satisfies(role, required) {
		return nil
	}
	return errcodes.WithDetails(errcodes.Forbidden(action), errcodes.Details{
		"role":           role,
		"required_level": required.String(),
	})
}

// AuthorizeUser is Authorize for a user loaded from the store. Missing and
// inactive users are always denied.
func AuthorizeUser(user *models.User, required Level, action string) error {
	if user == nil || !user.IsActive {
		return errcodes.WithDetails(errcodes.Forbidden(action), errcodes.Details{
			"required_level": required.String(),
		})
	}
	return Authorize(user.Role, required, action)
}
