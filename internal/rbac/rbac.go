package rbac

import (
	"fmt"

	"mentor-portal/internal/models"
)

// Permission is a (resource, action) capability pair.
type Permission struct {
	Resource string
	Action   string
}

// String renders the flattened "resource:action" form used in the
// authenticated user view.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// Named permissions referenced by the catalog and by route gates.
var (
	UserRead   = Permission{Resource: "user", Action: "read"}
	UserUpdate = Permission{Resource: "user", Action: "update"}
	UserDelete = Permission{Resource: "user", Action: "delete"}

	AdminRead  = Permission{Resource: "admin", Action: "read"}
	AdminWrite = Permission{Resource: "admin", Action: "write"}

	TimetableRead  = Permission{Resource: "timetable", Action: "read"}
	TimetableWrite = Permission{Resource: "timetable", Action: "write"}
)

// rolePermissions is the static catalog. Each role's set is spelled
// out in full rather than derived from a lower tier, so a role can be
// adjusted without side effects on its neighbours.
var rolePermissions = map[models.Role][]Permission{
	models.RoleStudent: {
		UserRead,
		UserUpdate,
		TimetableRead,
	},
	models.RoleMentor: {
		UserRead,
		UserUpdate,
		TimetableRead,
		TimetableWrite,
	},
	models.RoleSeniorMentor: {
		UserRead,
		UserUpdate,
		TimetableRead,
		TimetableWrite,
	},
	models.RoleAdmin: {
		UserRead,
		UserUpdate,
		UserDelete,
		AdminRead,
		AdminWrite,
		TimetableRead,
		TimetableWrite,
	},
	models.RoleSuperadmin: {
		UserRead,
		UserUpdate,
		UserDelete,
		AdminRead,
		AdminWrite,
		TimetableRead,
		TimetableWrite,
	},
}

// HasPermission reports whether the role's catalog entry contains the
// requested permission. An unknown role has no permissions.
func HasPermission(role models.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsFor returns the role's catalog entry. The returned slice
// must not be mutated by callers.
func PermissionsFor(role models.Role) []Permission {
	return rolePermissions[role]
}

// PermissionStrings returns the role's permissions flattened to
// "resource:action" form.
func PermissionStrings(role models.Role) []string {
	perms := rolePermissions[role]
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	return out
}

// Validate checks that every role has a catalog entry. Run at startup
// so a missing role fails fast instead of silently granting nothing.
func Validate() error {
	for _, role := range models.AllRoles {
		if _, ok := rolePermissions[role]; !ok {
			return fmt.Errorf("rbac: role %s has no permission catalog entry", role)
		}
	}
	return nil
}
