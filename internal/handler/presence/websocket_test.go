package presence

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	presenceModel "github.com/zhouzirui/huddle/backend/internal/model/presence"
	presenceService "github.com/zhouzirui/huddle/backend/internal/service/presence"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := presenceService.NewHub()
	registry := presenceService.NewRegistry(hub)
	handler := New(registry, hub)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, userID string) string {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/presence"
	if userID != "" {
		url += "?userId=" + userID
	}
	return url
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, userID), nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) presenceModel.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt presenceModel.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return evt
}

// waitForStatus reads events until userID reaches status, failing on timeout.
func waitForStatus(t *testing.T, conn *websocket.Conn, userID string, status presenceModel.Status) {
	t.Helper()
	for i := 0; i < 10; i++ {
		evt := readEvent(t, conn)
		if evt.Type == presenceModel.EventUserStatusChanged && evt.UserID == userID && evt.Status == status {
			return
		}
	}
	t.Fatalf("never observed %s -> %s", userID, status)
}

func TestRejectMissingUserID(t *testing.T) {
	srv := setupServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err == nil {
		t.Fatal("expected handshake rejection without userId")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 rejection, got %+v", resp)
	}
}

func TestFirstFrameIsEmptySnapshot(t *testing.T) {
	srv := setupServer(t)

	conn := dial(t, srv, "alice")
	evt := readEvent(t, conn)
	if evt.Type != presenceModel.EventInitialStatus {
		t.Fatalf("expected initial-status first, got %s", evt.Type)
	}
	if len(evt.Users) != 0 {
		t.Fatalf("expected empty snapshot for first user, got %+v", evt.Users)
	}
}

func TestInitialStatusListsOthersExcludingSelf(t *testing.T) {
	srv := setupServer(t)

	alice := dial(t, srv, "alice")
	readEvent(t, alice) // initial-status

	bob := dial(t, srv, "bob")
	readEvent(t, bob) // initial-status
	waitForStatus(t, alice, "bob", presenceModel.StatusOnline)

	// Bob goes away; alice observing the event proves the server applied it.
	if err := bob.WriteJSON(map[string]string{"type": "update-status", "status": "away"}); err != nil {
		t.Fatalf("send update-status: %v", err)
	}
	waitForStatus(t, alice, "bob", presenceModel.StatusAway)

	carol := dial(t, srv, "carol")
	evt := readEvent(t, carol)
	if evt.Type != presenceModel.EventInitialStatus {
		t.Fatalf("expected initial-status before any incremental event, got %s", evt.Type)
	}
	if len(evt.Users) != 2 {
		t.Fatalf("expected exactly 2 users in snapshot, got %+v", evt.Users)
	}
	statuses := make(map[string]presenceModel.Status, len(evt.Users))
	for _, u := range evt.Users {
		statuses[u.UserID] = u.Status
	}
	if statuses["alice"] != presenceModel.StatusOnline {
		t.Fatalf("expected alice online, got %s", statuses["alice"])
	}
	if statuses["bob"] != presenceModel.StatusAway {
		t.Fatalf("expected bob away, got %s", statuses["bob"])
	}
	if _, ok := statuses["carol"]; ok {
		t.Fatal("snapshot must exclude the caller")
	}
}

func TestOfflineBroadcastOnDisconnect(t *testing.T) {
	srv := setupServer(t)

	alice := dial(t, srv, "alice")
	readEvent(t, alice)

	bob := dial(t, srv, "bob")
	readEvent(t, bob)
	waitForStatus(t, alice, "bob", presenceModel.StatusOnline)

	bob.Close()
	waitForStatus(t, alice, "bob", presenceModel.StatusOffline)
}

func TestInvalidStatusIgnored(t *testing.T) {
	srv := setupServer(t)

	alice := dial(t, srv, "alice")
	readEvent(t, alice)

	bob := dial(t, srv, "bob")
	readEvent(t, bob)
	waitForStatus(t, alice, "bob", presenceModel.StatusOnline)

	// Offline is derived from connection count and must not be settable.
	if err := bob.WriteJSON(map[string]string{"type": "update-status", "status": "offline"}); err != nil {
		t.Fatalf("send update-status: %v", err)
	}
	if err := bob.WriteJSON(map[string]string{"type": "update-status", "status": "away"}); err != nil {
		t.Fatalf("send update-status: %v", err)
	}

	// Only the valid override arrives; the bogus one produced no broadcast.
	evt := readEvent(t, alice)
	if evt.UserID != "bob" || evt.Status != presenceModel.StatusAway {
		t.Fatalf("expected bob away, got %+v", evt)
	}
}
