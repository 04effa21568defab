package auth

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser UserRole = "user"
	// RoleAdmin can list and manage other users.
	RoleAdmin UserRole = "admin"
)

// Permission names a right checked by the HTTP guard.
type Permission string

const (
	// PermissionGetUsers allows listing and reading arbitrary users.
	PermissionGetUsers Permission = "getUsers"
	// PermissionManageUsers allows creating, updating, and deleting users.
	PermissionManageUsers Permission = "manageUsers"
)

// RoleRights is the closed rights table. Regular users hold no global rights;
// self access is granted separately by the guard.
var RoleRights = map[UserRole][]Permission{
	RoleUser:  {},
	RoleAdmin: {PermissionGetUsers, PermissionManageUsers},
}

// IsValidRole checks membership in the role enumeration.
func IsValidRole(r UserRole) bool {
	_, ok := RoleRights[r]
	return ok
}

// RoleHasRight reports whether the role grants the permission.
func RoleHasRight(r UserRole, p Permission) bool {
	for _, right := range RoleRights[r] {
		if right == p {
			return true
		}
	}
	return false
}
