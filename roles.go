package authstate

// Role is the role the backend assigned to the session user
type Role string

const (
	// RoleNone is the role of an unauthenticated session
	RoleNone Role = ""
	// RoleAdmin manages the whole platform
	RoleAdmin Role = "admin"
	// RoleCoordinator manages a support center
	RoleCoordinator Role = "coordinator"
	// RoleStudent is an enrolled student
	RoleStudent Role = "student"
)

// IsValid checks if the role is one of the roles a verified session can hold
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleStudent:
		return true
	default:
		return false
	}
}

// IsNone reports whether the role is the unauthenticated role
func (r Role) IsNone() bool {
	return r == RoleNone
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// AllRoles returns the roles a verified session can hold
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleCoordinator,
		RoleStudent,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
