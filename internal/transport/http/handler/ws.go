package handler

import (
	"net/http"

	"github.com/go-notify-api/internal/realtime"
	"github.com/go-notify-api/internal/transport/http/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler performs the real-time handshake: authenticate, then upgrade and
// hand the connection to the hub. Authentication happens before the upgrade,
// so a rejected client never owns a WebSocket and never joins a group.
type WSHandler struct {
	auth     *middleware.Authenticator
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(auth *middleware.Authenticator, hub *realtime.Hub, allowedOrigins []string, log *zap.Logger) *WSHandler {
	allowAll := false
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}
	return &WSHandler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		log: log,
	}
}

func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime disabled")
		return
	}

	token := middleware.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}
	principal, err := h.auth.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Register(conn, *principal)
}

// Stats reports live connection counts, computed on demand from the hub.
func (h *WSHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"connections":        h.hub.ConnectionCount(),
		"tenant_connections": h.hub.TenantConnectionCount(p.TenantID),
	})
}
