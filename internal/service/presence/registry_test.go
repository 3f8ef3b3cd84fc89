package presence

import (
	"testing"
	"time"

	presenceModel "github.com/zhouzirui/huddle/backend/internal/model/presence"
)

func drain(sub *Subscriber) []presenceModel.Event {
	var events []presenceModel.Event
	for {
		select {
		case evt := <-sub.Events:
			events = append(events, evt)
		default:
			return events
		}
	}
}

func countTransitions(events []presenceModel.Event, userID string) int {
	n := 0
	for _, evt := range events {
		if evt.Type == presenceModel.EventUserStatusChanged && evt.UserID == userID {
			n++
		}
	}
	return n
}

func TestMultiConnectionPresence(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	// An observer watches the transitions user A produces.
	observer := hub.Join("obs-conn", "observer")
	registry.Connect("observer", "obs-conn")
	drain(observer)

	if !registry.Connect("alice", "c1") {
		t.Fatal("first connection should bring alice online")
	}
	if registry.Connect("alice", "c2") {
		t.Fatal("second connection must not re-broadcast online")
	}
	if registry.Disconnect("alice", "c1") {
		t.Fatal("alice still has c2, must not go offline")
	}
	if !registry.Disconnect("alice", "c2") {
		t.Fatal("closing the last connection should take alice offline")
	}

	events := drain(observer)
	if got := countTransitions(events, "alice"); got != 2 {
		t.Fatalf("expected exactly 2 broadcasts for alice (online, offline), got %d", got)
	}
	if events[0].Status != presenceModel.StatusOnline {
		t.Fatalf("first transition should be online, got %s", events[0].Status)
	}
	if events[len(events)-1].Status != presenceModel.StatusOffline {
		t.Fatalf("last transition should be offline, got %s", events[len(events)-1].Status)
	}
}

func TestSnapshotExcludesCaller(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	registry.Connect("alice", "c1")
	registry.Connect("bob", "c2")
	registry.SetStatus("bob", presenceModel.StatusAway)
	registry.Connect("carol", "c3")

	snapshot := registry.Snapshot("carol")
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 users in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].UserID != "alice" || snapshot[0].Status != presenceModel.StatusOnline {
		t.Fatalf("unexpected first entry: %+v", snapshot[0])
	}
	if snapshot[1].UserID != "bob" || snapshot[1].Status != presenceModel.StatusAway {
		t.Fatalf("unexpected second entry: %+v", snapshot[1])
	}
}

func TestSnapshotSkipsOfflineUsers(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	registry.Connect("alice", "c1")
	registry.Disconnect("alice", "c1")

	if snapshot := registry.Snapshot(""); len(snapshot) != 0 {
		t.Fatalf("offline user leaked into snapshot: %+v", snapshot)
	}
}

func TestSetStatusRequiresConnection(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	if registry.SetStatus("ghost", presenceModel.StatusAway) {
		t.Fatal("status override accepted for connectionless user")
	}
	if registry.SetStatus("ghost", presenceModel.StatusOffline) {
		t.Fatal("offline must never be settable")
	}
}

func TestSetStatusLastWriteWins(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	registry.Connect("alice", "c1")
	registry.SetStatus("alice", presenceModel.StatusAway)
	registry.SetStatus("alice", presenceModel.StatusOnline)

	snapshot := registry.Snapshot("")
	if snapshot[0].Status != presenceModel.StatusOnline {
		t.Fatalf("expected online after last write, got %s", snapshot[0].Status)
	}
}

func TestPruneRemovesOnlyIdleOffline(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	registry.Connect("alice", "c1")
	registry.Connect("bob", "c2")
	registry.Disconnect("bob", "c2")

	now = now.Add(2 * time.Hour)
	if removed := registry.Prune(time.Hour); removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}

	// Alice is still connected and must survive the sweep.
	if snapshot := registry.Snapshot(""); len(snapshot) != 1 || snapshot[0].UserID != "alice" {
		t.Fatalf("connected user lost in prune: %+v", snapshot)
	}
}

func TestBroadcastExcludesConnection(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	peer := hub.Join("peer-conn", "bob")
	self := hub.Join("self-conn", "alice")

	registry.Connect("alice", "self-conn")

	if got := countTransitions(drain(peer), "alice"); got != 1 {
		t.Fatalf("peer should see alice's online transition, got %d events", got)
	}
	if got := countTransitions(drain(self), "alice"); got != 0 {
		t.Fatal("the connecting connection must not receive its own transition")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry(hub)

	slow := hub.Join("slow-conn", "watcher")
	healthy := hub.Join("healthy-conn", "other")

	// Overflow the slow subscriber's buffer; Broadcast must never stall.
	for i := 0; i < subscriberBuffer+10; i++ {
		registry.Connect("alice", "c1")
		registry.Disconnect("alice", "c1")
	}

	if len(slow.Events) != subscriberBuffer {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBuffer, len(slow.Events))
	}
	if len(drain(healthy)) == 0 {
		t.Fatal("healthy subscriber starved by slow one")
	}
}

func TestLeaveClosesChannel(t *testing.T) {
	hub := NewHub()

	sub := hub.Join("c1", "alice")
	hub.Leave("c1")

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected closed channel after Leave")
	}
	if hub.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", hub.Len())
	}
}
