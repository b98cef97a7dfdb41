package auth

// Wildcard is the reserved all-match token. A permission whose resource and
// action both equal Wildcard grants every (resource, action) pair; it is
// provisioned once and attached to the superuser role.
const Wildcard = "*"

// Names used by the provisioning flow.
const (
	SuperuserRoleName      = "superuser"
	WildcardPermissionName = "all"
	superuserRoleDesc      = "Superuser role with all permissions"
	wildcardPermissionDesc = "All permissions"
)

// Authorize reports whether user may perform action on resource. Superusers
// bypass the check entirely. Otherwise any single matching permission across
// the user's roles suffices; there is no deny concept and no precedence.
func Authorize(user *User, resource, action string) bool {
	if user == nil {
		return false
	}
	if user.Superuser {
		return true
	}
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if permMatch(perm.Resource, resource) && permMatch(perm.Action, action) {
				return true
			}
		}
	}
	return false
}

// permMatch is plain value equality; the wildcard grant works because its
// fields compare equal to the reserved token, not because of any hierarchy.
func permMatch(granted, requested string) bool {
	return granted == requested || granted == Wildcard
}

// PermissionPairs flattens the user's role/permission graph into the set of
// granted (resource, action) pairs. Handy for /auth/me style introspection;
// Authorize itself keeps the nested traversal since RBAC sets stay small.
func PermissionPairs(user *User) [][2]string {
	if user == nil {
		return nil
	}
	seen := make(map[[2]string]struct{})
	var out [][2]string
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			pair := [2]string{perm.Resource, perm.Action}
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			out = append(out, pair)
		}
	}
	return out
}
