// Package auth provides token authentication for the automation creator API.
//
// Callers present an HS256 JWT signed with the configured secret. The token
// carries a role, and each role maps to a fixed set of permissions:
//
//	user  → read generated automations
//	admin → read automations, drive creator sessions, administer the service
//
// The creator panel is admin-only, so session endpoints require
// PermSessionOperate. Tokens are validated by signature and expiry alone;
// there is no user store or refresh flow.
package auth
