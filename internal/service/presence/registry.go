package presence

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zhouzirui/huddle/backend/internal/model/presence"
)

const defaultShardCount = 32

// Registry tracks which users currently have at least one live connection
// and derives their aggregate status. State is sharded by userId hash so
// concurrent connects and disconnects contend only within a shard, never on
// a global lock.
//
// Transitions are published to the Hub inside the owning shard's critical
// section, which keeps per-user event order intact; Hub sends are
// non-blocking channel writes, so no lock is ever held across I/O.
type Registry struct {
	hub    *Hub
	shards []*shard
	now    func() time.Time
}

type shard struct {
	mu    sync.Mutex
	users map[string]*userState
}

type userState struct {
	conns    map[string]struct{}
	status   presence.Status
	lastSeen time.Time
}

// NewRegistry builds a Registry broadcasting through hub.
func NewRegistry(hub *Hub) *Registry {
	shards := make([]*shard, defaultShardCount)
	for i := range shards {
		shards[i] = &shard{users: make(map[string]*userState)}
	}
	return &Registry{hub: hub, shards: shards, now: time.Now}
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Connect records a new connection for the user. On the 0->1 transition the
// user goes online and the change is broadcast to every other connection;
// additional connections for an already-online user produce no broadcast.
// Returns true when the user came online.
func (r *Registry) Connect(userID, connID string) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok {
		st = &userState{conns: make(map[string]struct{})}
		sh.users[userID] = st
	}
	st.conns[connID] = struct{}{}
	st.lastSeen = r.now().UTC()

	if len(st.conns) > 1 {
		return false
	}

	st.status = presence.StatusOnline
	r.broadcastLocked(userID, st, connID)
	slog.Debug("user online", "user", userID, "conn", connID)
	return true
}

// Disconnect removes a connection. When the user's last connection goes, the
// user transitions to offline and the change is broadcast. Returns true when
// the user went offline.
func (r *Registry) Disconnect(userID, connID string) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok {
		return false
	}
	delete(st.conns, connID)
	st.lastSeen = r.now().UTC()
	if len(st.conns) > 0 {
		return false
	}

	st.status = presence.StatusOffline
	r.broadcastLocked(userID, st, "")
	slog.Debug("user offline", "user", userID, "conn", connID)
	return true
}

// SetStatus applies an explicit status override (e.g. away), last write
// wins. Updates for users with no live connections are ignored: offline is
// derived, never requested.
func (r *Registry) SetStatus(userID string, status presence.Status) bool {
	if !status.Settable() {
		return false
	}

	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok || len(st.conns) == 0 {
		return false
	}
	st.status = status
	st.lastSeen = r.now().UTC()
	r.broadcastLocked(userID, st, "")
	return true
}

// broadcastLocked publishes the user's current status. Callers hold the
// shard lock; Hub sends never block.
func (r *Registry) broadcastLocked(userID string, st *userState, excludeConnID string) {
	lastSeen := st.lastSeen
	r.hub.Broadcast(presence.Event{
		Type:     presence.EventUserStatusChanged,
		UserID:   userID,
		Status:   st.status,
		LastSeen: &lastSeen,
	}, excludeConnID)
}

// Snapshot returns every currently-connected user except excludeUserID,
// sorted by user id. New connections are seeded with this so they never see
// the world as offline while waiting for individual events.
func (r *Registry) Snapshot(excludeUserID string) []presence.UserStatus {
	var result []presence.UserStatus
	for _, sh := range r.shards {
		sh.mu.Lock()
		for userID, st := range sh.users {
			if userID == excludeUserID || len(st.conns) == 0 {
				continue
			}
			result = append(result, presence.UserStatus{
				UserID:   userID,
				Status:   st.status,
				LastSeen: st.lastSeen,
			})
		}
		sh.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}

// Prune drops entries that have been offline for longer than maxIdle and
// returns how many were removed. Connected users are never touched.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().UTC().Add(-maxIdle)
	removed := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		for userID, st := range sh.users {
			if len(st.conns) == 0 && st.lastSeen.Before(cutoff) {
				delete(sh.users, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// RunPruner garbage-collects offline entries on the given interval until the
// context is cancelled.
func (r *Registry) RunPruner(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(maxIdle); n > 0 {
				slog.Debug("pruned offline presence entries", "count", n)
			}
		}
	}
}
