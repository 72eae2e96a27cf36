package auth

import "slices"

// Permission names one capability checked by the API router.
type Permission string

const (
	// PermAutomationRead lists and reads generated automations.
	PermAutomationRead Permission = "automation:read"

	// PermSessionOperate drives creator sessions: create, answer, submit,
	// reset and WebSocket subscriptions.
	PermSessionOperate Permission = "session:operate"

	// PermSystemAdmin deletes history and reads the audit trail.
	PermSystemAdmin Permission = "system:admin"
)

// grants is the whole authorisation model. Each list is kept sorted.
var grants = map[Role][]Permission{
	RoleUser:  {PermAutomationRead},
	RoleAdmin: {PermAutomationRead, PermSessionOperate, PermSystemAdmin},
}

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(grants[role], perm)
}

// PermissionsForRole returns a copy of the permissions role grants, or nil
// for an unknown role.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(grants[role])
}
