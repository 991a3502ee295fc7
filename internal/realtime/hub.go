package realtime

import (
	"sync"

	"github.com/go-notify-api/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub is the tenant-isolated real-time bus: it owns all live sessions and
// their broadcast-group memberships, and exposes fire-and-forget send-to-group
// operations for producers.
//
// A nil *Hub is valid and means "real-time disabled": every method degrades to
// a silent no-op, so callers never branch on availability.
//
// Group membership is only ever mutated by the owning connection's events
// (connect, subscribe, unsubscribe, disconnect), guarded by one mutex.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	groups   map[string]map[*Session]struct{}

	sendBuffer  int
	maxMsgBytes int64
	log         *zap.Logger
}

// NewHub constructs a hub. sendBuffer is the per-connection outbound queue in
// messages; a session that falls that far behind has its frames dropped
// rather than blocking the sender.
func NewHub(sendBuffer int, maxMsgBytes int64, log *zap.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if maxMsgBytes <= 0 {
		maxMsgBytes = 4096
	}
	return &Hub{
		sessions:    make(map[*Session]struct{}),
		groups:      make(map[string]map[*Session]struct{}),
		sendBuffer:  sendBuffer,
		maxMsgBytes: maxMsgBytes,
		log:         log,
	}
}

// Register takes ownership of an upgraded connection for the given principal:
// the session is auto-joined to its tenant-wide, user-wide and tenant+user
// groups and its read/write pumps are started. No presence broadcast is made
// on connect — presence is pull, driven by explicit client messages.
func (h *Hub) Register(conn *websocket.Conn, p domain.Principal) *Session {
	if h == nil {
		return nil
	}
	s := &Session{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.sendBuffer),
		userID:   p.UserID,
		tenantID: p.TenantID,
		plan:     p.Plan,
	}
	h.add(s)

	go s.writePump()
	go s.readPump()

	h.log.Info("realtime session connected",
		zap.String("tenant_id", s.tenantID),
		zap.String("user_id", s.userID))
	return s
}

// add inserts the session and joins its three automatic groups.
// Split from Register so tests can drive a session without a live socket.
func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
	h.joinLocked(s, TenantGroup(s.tenantID))
	h.joinLocked(s, UserGroup(s.userID))
	h.joinLocked(s, TenantUserGroup(s.tenantID, s.userID))
}

// unregister drops the session and all its group memberships. If it was the
// user's last connection in the tenant, an offline presence event is
// synthesized to the tenant group — checking first avoids presence flicker
// when the same user has several tabs open.
//
// The send channel is closed while still holding the write lock: emit delivers
// under the read lock, so a close can never interleave with an in-flight send.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	for key, members := range h.groups {
		if _, ok := members[s]; ok {
			delete(members, s)
			if len(members) == 0 {
				delete(h.groups, key)
			}
		}
	}
	lastForUser := true
	for other := range h.sessions {
		if other.tenantID == s.tenantID && other.userID == s.userID {
			lastForUser = false
			break
		}
	}
	close(s.send)
	h.mu.Unlock()

	if lastForUser {
		h.emit(TenantGroup(s.tenantID), EventUserPresence, PresenceEvent{
			UserID: s.userID,
			Status: "offline",
		})
	}

	h.log.Info("realtime session disconnected",
		zap.String("tenant_id", s.tenantID),
		zap.String("user_id", s.userID))
}

// subscribeEntity joins the session to an entity-scoped group. The tenant
// component of the key comes from the session, so crafted client input can
// never reach another tenant's group.
func (h *Hub) subscribeEntity(s *Session, entityType, entityID string) {
	if entityType == "" || entityID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	h.joinLocked(s, EntityGroup(s.tenantID, entityType, entityID))
}

func (h *Hub) unsubscribeEntity(s *Session, entityType, entityID string) {
	key := EntityGroup(s.tenantID, entityType, entityID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[key]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, key)
		}
	}
}

// handlePresence rebroadcasts a client presence update verbatim to the
// session's tenant group, tagged with the sending user id.
func (h *Hub) handlePresence(s *Session, status string) {
	h.emit(TenantGroup(s.tenantID), EventUserPresence, PresenceEvent{
		UserID: s.userID,
		Status: status,
	})
}

func (h *Hub) joinLocked(s *Session, key string) {
	members, ok := h.groups[key]
	if !ok {
		members = make(map[*Session]struct{})
		h.groups[key] = members
	}
	members[s] = struct{}{}
}

// emit sends one event to every member of the group. Delivery is
// fire-and-forget, at-most-once: an empty or unknown group is a no-op, and a
// session whose buffer is full has the frame dropped instead of blocking.
//
// Sends happen under the read lock. They are non-blocking, so the lock is
// never held for long, and unregister closes the channel under the write lock,
// so a send can never race a close.
func (h *Hub) emit(key, event string, data interface{}) {
	if h == nil {
		return
	}
	msg, err := marshalEnvelope(event, data)
	if err != nil {
		h.log.Error("failed to marshal realtime event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.groups[key] {
		select {
		case s.send <- msg:
		default:
			h.log.Warn("dropping frame for slow realtime session",
				zap.String("user_id", s.userID),
				zap.String("event", event))
		}
	}
}

// EmitToTenant broadcasts to every connection of a tenant.
func (h *Hub) EmitToTenant(tenantID, event string, data interface{}) {
	if h == nil {
		return
	}
	h.emit(TenantGroup(tenantID), event, data)
}

// EmitToUser broadcasts to every connection of a user across tenants.
func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	if h == nil {
		return
	}
	h.emit(UserGroup(userID), event, data)
}

// EmitToTenantUser broadcasts to one user's connections within one tenant —
// the canonical notification-delivery target.
func (h *Hub) EmitToTenantUser(tenantID, userID, event string, data interface{}) {
	if h == nil {
		return
	}
	h.emit(TenantUserGroup(tenantID, userID), event, data)
}

// EmitToEntity broadcasts to the subscribers of one entity within one tenant.
func (h *Hub) EmitToEntity(tenantID, entityType, entityID, event string, data interface{}) {
	if h == nil {
		return
	}
	h.emit(EntityGroup(tenantID, entityType, entityID), event, data)
}

// ConnectionCount reports the number of live sessions, computed on demand.
func (h *Hub) ConnectionCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// TenantConnectionCount reports the number of live sessions for one tenant.
func (h *Hub) TenantConnectionCount(tenantID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[TenantGroup(tenantID)])
}
