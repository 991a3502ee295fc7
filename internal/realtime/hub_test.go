package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPrincipal() domain.Principal {
	return domain.Principal{UserID: "u1", TenantID: "t1", Plan: "pro", Role: "member"}
}

// newTestSession builds a session with a buffered outbound channel and no
// underlying socket, added straight to the hub's registry.
func newTestSession(h *Hub, tenantID, userID string) *Session {
	s := &Session{
		hub:      h,
		send:     make(chan []byte, 8),
		userID:   userID,
		tenantID: tenantID,
	}
	h.add(s)
	return s
}

// recvEvent pops one frame from the session's buffer, failing if none is queued.
func recvEvent(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case msg := <-s.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	default:
		t.Fatal("no frame queued for session")
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case msg := <-s.send:
		t.Fatalf("unexpected frame queued: %s", msg)
	default:
	}
}

func TestGroupKeys(t *testing.T) {
	assert.Equal(t, "tenant:t1", TenantGroup("t1"))
	assert.Equal(t, "user:u1", UserGroup("u1"))
	assert.Equal(t, "tenant:t1:user:u1", TenantUserGroup("t1", "u1"))
	assert.Equal(t, "tenant:t1:entity:deal:d9", EntityGroup("t1", "deal", "d9"))
}

func TestAdd_JoinsThreeGroups(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	s := newTestSession(h, "t1", "u1")

	h.EmitToTenant("t1", "ping", nil)
	assert.Equal(t, "ping", recvEvent(t, s).Event)

	h.EmitToUser("u1", "ping", nil)
	assert.Equal(t, "ping", recvEvent(t, s).Event)

	h.EmitToTenantUser("t1", "u1", "ping", nil)
	assert.Equal(t, "ping", recvEvent(t, s).Event)
}

func TestEmitToTenantUser_OnlyReachesThatPair(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	target := newTestSession(h, "t1", "u1")
	sameTenant := newTestSession(h, "t1", "u2")
	sameUserOtherTenant := newTestSession(h, "t2", "u1")

	h.EmitToTenantUser("t1", "u1", EventNotificationNew, NotificationEvent{ID: "n1"})

	env := recvEvent(t, target)
	assert.Equal(t, EventNotificationNew, env.Event)
	var payload NotificationEvent
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "n1", payload.ID)

	assertNoFrame(t, sameTenant)
	assertNoFrame(t, sameUserOtherTenant)
}

func TestEmitToTenant_ExcludesOtherTenants(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	a := newTestSession(h, "t1", "u1")
	b := newTestSession(h, "t1", "u2")
	outsider := newTestSession(h, "t2", "u3")

	h.EmitToTenant("t1", "announce", nil)

	recvEvent(t, a)
	recvEvent(t, b)
	assertNoFrame(t, outsider)
}

func TestSubscribeEntity_TenantScoped(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	insider := newTestSession(h, "t1", "u1")
	outsider := newTestSession(h, "t2", "u2")

	// Both subscribe to the same entity type+id; the group key carries each
	// session's own tenant, so they land in different groups.
	h.subscribeEntity(insider, "deal", "d1")
	h.subscribeEntity(outsider, "deal", "d1")

	h.EmitToEntity("t1", "deal", "d1", "deal:updated", nil)

	assert.Equal(t, "deal:updated", recvEvent(t, insider).Event)
	assertNoFrame(t, outsider)
}

func TestSubscribeEntity_IgnoresEmptyComponents(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	s := newTestSession(h, "t1", "u1")

	h.subscribeEntity(s, "", "d1")
	h.subscribeEntity(s, "deal", "")

	h.EmitToEntity("t1", "deal", "d1", "deal:updated", nil)
	assertNoFrame(t, s)
}

func TestUnsubscribeEntity(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	s := newTestSession(h, "t1", "u1")

	h.subscribeEntity(s, "deal", "d1")
	h.unsubscribeEntity(s, "deal", "d1")

	h.EmitToEntity("t1", "deal", "d1", "deal:updated", nil)
	assertNoFrame(t, s)
}

func TestUnregister_DropsAllGroups(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	s := newTestSession(h, "t1", "u1")
	h.subscribeEntity(s, "deal", "d1")

	h.unregister(s)

	assert.Equal(t, 0, h.ConnectionCount())
	assert.Equal(t, 0, h.TenantConnectionCount("t1"))
	// Emits after unregister go nowhere; send is closed, so any delivery
	// attempt would panic — the absence of a panic is the assertion.
	h.EmitToTenantUser("t1", "u1", "ping", nil)
	h.EmitToEntity("t1", "deal", "d1", "ping", nil)
}

func TestUnregister_LastConnectionBroadcastsOffline(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	leaving := newTestSession(h, "t1", "u1")
	watcher := newTestSession(h, "t1", "u2")

	h.unregister(leaving)

	env := recvEvent(t, watcher)
	assert.Equal(t, EventUserPresence, env.Event)
	var p PresenceEvent
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "offline", p.Status)
}

func TestUnregister_OtherTabStillOpen_NoOfflineEvent(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	tabOne := newTestSession(h, "t1", "u1")
	tabTwo := newTestSession(h, "t1", "u1")
	watcher := newTestSession(h, "t1", "u2")

	h.unregister(tabOne)
	assertNoFrame(t, watcher)

	h.unregister(tabTwo)
	env := recvEvent(t, watcher)
	assert.Equal(t, EventUserPresence, env.Event)
}

func TestUnregister_Twice_IsSafe(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	s := newTestSession(h, "t1", "u1")

	h.unregister(s)
	h.unregister(s) // double close would panic if not guarded
}

func TestHandlePresence_BroadcastsToTenant(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	sender := newTestSession(h, "t1", "u1")
	peer := newTestSession(h, "t1", "u2")
	outsider := newTestSession(h, "t2", "u3")

	h.handlePresence(sender, "away")

	for _, s := range []*Session{sender, peer} {
		env := recvEvent(t, s)
		assert.Equal(t, EventUserPresence, env.Event)
		var p PresenceEvent
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "u1", p.UserID)
		assert.Equal(t, "away", p.Status)
	}
	assertNoFrame(t, outsider)
}

func TestNilHub_AllMethodsNoOp(t *testing.T) {
	var h *Hub

	assert.Nil(t, h.Register(nil, testPrincipal()))
	h.EmitToTenant("t1", "e", nil)
	h.EmitToUser("u1", "e", nil)
	h.EmitToTenantUser("t1", "u1", "e", nil)
	h.EmitToEntity("t1", "deal", "d1", "e", nil)
	assert.Equal(t, 0, h.ConnectionCount())
	assert.Equal(t, 0, h.TenantConnectionCount("t1"))
}

func TestSlowSession_FramesDroppedNotBlocking(t *testing.T) {
	h := NewHub(1, 4096, zap.NewNop())
	s := &Session{hub: h, send: make(chan []byte, 1), userID: "u1", tenantID: "t1"}
	h.add(s)

	// First frame fills the buffer; the second must be dropped without blocking.
	h.EmitToTenantUser("t1", "u1", "one", nil)
	h.EmitToTenantUser("t1", "u1", "two", nil)

	assert.Equal(t, "one", recvEvent(t, s).Event)
	assertNoFrame(t, s)
}

// Emits race disconnects for the same tenant+user across goroutines. A send
// hitting a closed channel panics and fails the run; surviving the churn is
// the assertion.
func TestEmitDuringDisconnect_NeverSendsOnClosedChannel(t *testing.T) {
	h := NewHub(1, 4096, zap.NewNop())

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					h.EmitToTenantUser("t1", "u1", "ping", nil)
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		s := &Session{hub: h, send: make(chan []byte, 1), userID: "u1", tenantID: "t1"}
		h.add(s)
		h.unregister(s)
	}

	close(done)
	wg.Wait()
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestConnectionCounts(t *testing.T) {
	h := NewHub(8, 4096, zap.NewNop())
	a := newTestSession(h, "t1", "u1")
	newTestSession(h, "t1", "u2")
	newTestSession(h, "t2", "u3")

	assert.Equal(t, 3, h.ConnectionCount())
	assert.Equal(t, 2, h.TenantConnectionCount("t1"))
	assert.Equal(t, 1, h.TenantConnectionCount("t2"))
	assert.Equal(t, 0, h.TenantConnectionCount("t9"))

	h.unregister(a)
	assert.Equal(t, 2, h.ConnectionCount())
	assert.Equal(t, 1, h.TenantConnectionCount("t1"))
}
