package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session is one authenticated real-time connection. It lives for exactly as
// long as the underlying WebSocket; all group memberships are dropped when it
// goes away. Never persisted.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID   string
	tenantID string
	plan     string
}

// readPump consumes client frames until the connection drops, dispatching
// subscribe/unsubscribe/presence messages. Runs as the sole reader.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(s.hub.maxMsgBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Debug("websocket read error",
					zap.String("user_id", s.userID), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue // malformed frames are ignored, not fatal
		}

		switch env.Event {
		case eventSubscribe:
			var req SubscribeRequest
			if err := json.Unmarshal(env.Data, &req); err == nil {
				s.hub.subscribeEntity(s, req.EntityType, req.EntityID)
			}
		case eventUnsubscribe:
			var req SubscribeRequest
			if err := json.Unmarshal(env.Data, &req); err == nil {
				s.hub.unsubscribeEntity(s, req.EntityType, req.EntityID)
			}
		case eventPresence:
			var upd PresenceUpdate
			if err := json.Unmarshal(env.Data, &upd); err == nil {
				s.hub.handlePresence(s, upd.Status)
			}
		}
	}
}

// writePump drains the outbound buffer onto the wire and keeps the
// connection alive with pings. Runs as the sole writer.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
