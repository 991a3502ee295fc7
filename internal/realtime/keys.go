package realtime

import "fmt"

// Broadcast group keys are derived deterministically from their components.
// The tenant component always comes from the session's authenticated tenant,
// never from client input, so a connection can never be joined to another
// tenant's group.

// TenantGroup is the tenant-wide broadcast group.
func TenantGroup(tenantID string) string {
	return "tenant:" + tenantID
}

// UserGroup is the cross-tenant group for one user (multi-workspace clients).
func UserGroup(userID string) string {
	return "user:" + userID
}

// TenantUserGroup is the canonical notification-delivery target.
func TenantUserGroup(tenantID, userID string) string {
	return fmt.Sprintf("tenant:%s:user:%s", tenantID, userID)
}

// EntityGroup scopes live-subscription broadcasts to one entity of a tenant.
func EntityGroup(tenantID, entityType, entityID string) string {
	return fmt.Sprintf("tenant:%s:entity:%s:%s", tenantID, entityType, entityID)
}
