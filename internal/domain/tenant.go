package domain

import "time"

// Tenant statuses.
const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
)

// Tenant plans.
const (
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Tenant is the isolation boundary: every notification and broadcast group
// belongs to exactly one tenant.
type Tenant struct {
	TenantID        string    `json:"id" dynamodbav:"tenant_id"`
	Name            string    `json:"name" dynamodbav:"name"`
	Plan            string    `json:"plan" dynamodbav:"plan"`
	Status          string    `json:"status" dynamodbav:"status"`
	SlackWebhookURL string    `json:"-" dynamodbav:"slack_webhook_url,omitempty"`
	CreatedAt       time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Membership statuses.
const (
	MemberActive  = "active"
	MemberInvited = "invited"
	MemberRemoved = "removed"
)

// Membership roles.
const (
	RoleAdmin   = "admin"
	RoleMember  = "member"
	RoleService = "service"
)

// Membership links a user to a tenant and carries the contact details the
// delivery worker needs for out-of-band channels.
type Membership struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	TenantID  string    `json:"tenant_id" dynamodbav:"tenant_id"`
	Role      string    `json:"role" dynamodbav:"role"`
	Status    string    `json:"status" dynamodbav:"status"`
	Email     string    `json:"email" dynamodbav:"email"`
	Phone     string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Principal identifies an authenticated caller and its active tenant.
// It is resolved once at the request boundary (REST middleware or WebSocket
// handshake) and passed explicitly to every store and dispatcher call.
type Principal struct {
	UserID   string
	TenantID string
	Plan     string
	Role     string
}
