package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// newSocketFactory serves real websocket upgrades so eviction has an actual
// socket to close. Each call to the returned func yields the server side of
// a fresh client/server pair.
func newSocketFactory(t *testing.T) func() *websocket.Conn {
	t.Helper()

	upgraded := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var upgrader websocket.Upgrader
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return func() *websocket.Conn {
		t.Helper()
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { client.Close() })

		serverSide := <-upgraded
		t.Cleanup(func() { serverSide.Close() })
		return serverSide
	}
}

// registerTestConnection binds a raw connection into the manager without
// starting pumps, so Send buffers fill deterministically.
func registerTestConnection(cm *ConnectionManager, ws *websocket.Conn, buffer int) *Connection {
	conn := &Connection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, buffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(conn)
	return conn
}

func testEvent(t *testing.T) *ChatEvent {
	t.Helper()
	event, err := NewEvent(EventTypePresenceCount, PresenceCountPayload{Count: 1})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return event
}

func TestTrySendAfterCloseIsRejected(t *testing.T) {
	conn := &Connection{ID: "c1", Send: make(chan []byte, 1)}

	if !conn.trySend([]byte("first")) {
		t.Fatal("expected send to queue on open connection")
	}
	conn.closeSend()
	if conn.trySend([]byte("second")) {
		t.Fatal("send after close must be rejected")
	}

	// closing twice is a no-op
	conn.closeSend()
}

func TestBroadcastEvictsSlowClientOnly(t *testing.T) {
	dial := newSocketFactory(t)
	cm := NewConnectionManager(DefaultConnectionConfig())

	fast := registerTestConnection(cm, dial(), 8)
	slow := registerTestConnection(cm, dial(), 1)
	slow.Send <- []byte("backlog")

	cm.handleBroadcast(BroadcastMessage{Event: testEvent(t)})

	select {
	case <-fast.Send:
	default:
		t.Fatal("fast connection missed the broadcast")
	}

	cm.mu.RLock()
	_, fastPresent := cm.connections[fast]
	_, slowPresent := cm.connections[slow]
	cm.mu.RUnlock()
	if slowPresent {
		t.Fatal("expected slow connection evicted")
	}
	if !fastPresent {
		t.Fatal("eviction must not touch healthy connections")
	}

	// the survivor keeps receiving
	cm.handleBroadcast(BroadcastMessage{Event: testEvent(t)})
	select {
	case <-fast.Send:
	default:
		t.Fatal("surviving connection missed the next broadcast")
	}
}

func TestSendToTargetsSingleConnection(t *testing.T) {
	dial := newSocketFactory(t)
	cm := NewConnectionManager(DefaultConnectionConfig())

	target := registerTestConnection(cm, dial(), 8)
	other := registerTestConnection(cm, dial(), 8)

	cm.handleBroadcast(BroadcastMessage{Event: testEvent(t), ConnID: target.ID})

	select {
	case <-target.Send:
	default:
		t.Fatal("targeted connection missed the event")
	}
	select {
	case <-other.Send:
		t.Fatal("untargeted connection must not receive the event")
	default:
	}
}

func TestBroadcastSurvivesConcurrentDisconnect(t *testing.T) {
	dial := newSocketFactory(t)
	cm := NewConnectionManager(DefaultConnectionConfig())
	event := testEvent(t)

	// A disconnect racing the post-snapshot send must never panic the
	// broadcast loop.
	for i := 0; i < 25; i++ {
		conn := registerTestConnection(cm, dial(), 1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			cm.unregisterConnection(conn)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cm.handleBroadcast(BroadcastMessage{Event: event})
			}
		}()
		wg.Wait()
	}

	cm.mu.RLock()
	remaining := len(cm.connections)
	cm.mu.RUnlock()
	if remaining != 0 {
		t.Fatalf("expected all connections unregistered, %d left", remaining)
	}
}
