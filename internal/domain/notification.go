package domain

import "time"

// NotificationType enumerates the application events that produce notifications.
type NotificationType string

const (
	TypeDealAssigned      NotificationType = "DEAL_ASSIGNED"
	TypeDealWon           NotificationType = "DEAL_WON"
	TypeDealLost          NotificationType = "DEAL_LOST"
	TypeDealStageChanged  NotificationType = "DEAL_STAGE_CHANGED"
	TypeTaskAssigned      NotificationType = "TASK_ASSIGNED"
	TypeTaskOverdue       NotificationType = "TASK_OVERDUE"
	TypeAccountHealthDrop NotificationType = "ACCOUNT_HEALTH_DROP"
	TypeUsageLimitWarning NotificationType = "USAGE_LIMIT_WARNING"
	TypeMention           NotificationType = "MENTION"
	TypeSystemAnnounce    NotificationType = "SYSTEM_ANNOUNCEMENT"
)

// Priority orders notifications for display. Default is PriorityNormal.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Notification is the persisted record of a single delivered event.
// Content is immutable after creation; only the read state may change.
type Notification struct {
	NotificationID string           `json:"id" dynamodbav:"notification_id"`
	TenantID       string           `json:"tenant_id" dynamodbav:"tenant_id"`
	UserID         string           `json:"user_id" dynamodbav:"user_id"`
	Type           NotificationType `json:"type" dynamodbav:"type"`
	Title          string           `json:"title" dynamodbav:"title"`
	Message        string           `json:"message" dynamodbav:"message"`
	ActionURL      string           `json:"action_url,omitempty" dynamodbav:"action_url,omitempty"`
	EntityType     string           `json:"entity_type,omitempty" dynamodbav:"entity_type,omitempty"`
	EntityID       string           `json:"entity_id,omitempty" dynamodbav:"entity_id,omitempty"`
	Priority       Priority         `json:"priority" dynamodbav:"priority"`
	// Channels is the channel set resolved at creation time. It is a
	// snapshot: later policy changes never affect existing rows.
	Channels  []Channel  `json:"channels" dynamodbav:"channels"`
	Read      bool       `json:"read" dynamodbav:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty" dynamodbav:"read_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" dynamodbav:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at"`
	// TenantUser is the GSI hash key ("<tenant_id>#<user_id>"), maintained by
	// the repository on write. Not part of the JSON contract.
	TenantUser string `json:"-" dynamodbav:"tenant_user"`
}

// Expired reports whether the notification has an expiry in the past.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// CreateNotificationRequest is the dispatcher's input. TenantID and UserID are
// supplied by the caller from its verified request context, never defaulted.
type CreateNotificationRequest struct {
	TenantID   string           `json:"tenant_id" validate:"required"`
	UserID     string           `json:"user_id" validate:"required"`
	Type       NotificationType `json:"type" validate:"required"`
	Title      string           `json:"title" validate:"required"`
	Message    string           `json:"message" validate:"required"`
	ActionURL  string           `json:"action_url,omitempty"`
	EntityType string           `json:"entity_type,omitempty"`
	EntityID   string           `json:"entity_id,omitempty"`
	Priority   Priority         `json:"priority,omitempty"`
	// Channels overrides the policy-table default when non-empty.
	Channels  []Channel  `json:"channels,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NotificationFilter narrows List results. Zero values mean "no filter".
type NotificationFilter struct {
	Read     *bool
	Types    []NotificationType
	Priority Priority
	DateFrom *time.Time
	DateTo   *time.Time
}

// Page is 1-based pagination input. Limit is clamped to [1,100] by the service.
type Page struct {
	Page  int
	Limit int
}

// PageMeta describes a returned page.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
