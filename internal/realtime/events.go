package realtime

import (
	"encoding/json"
	"time"

	"github.com/go-notify-api/internal/domain"
)

// Wire event names.
const (
	EventNotificationNew = "notification:new"
	EventUserPresence    = "user:presence"

	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
	eventPresence    = "presence"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubscribeRequest is the client payload for subscribe/unsubscribe. The
// tenant is deliberately absent: it is taken from the session.
type SubscribeRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// PresenceUpdate is the client payload for a presence change.
type PresenceUpdate struct {
	Status string `json:"status"`
}

// PresenceEvent is the server payload rebroadcast to the tenant group.
type PresenceEvent struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// NotificationEvent is the server payload for a freshly created notification.
type NotificationEvent struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	ActionURL string                  `json:"action_url,omitempty"`
	Priority  domain.Priority         `json:"priority"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationEvent shapes the real-time payload for n.
func NewNotificationEvent(n *domain.Notification) NotificationEvent {
	return NotificationEvent{
		ID:        n.NotificationID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.ActionURL,
		Priority:  n.Priority,
		CreatedAt: n.CreatedAt,
	}
}

func marshalEnvelope(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
