package presence

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	presenceModel "github.com/zhouzirui/huddle/backend/internal/model/presence"
	presenceService "github.com/zhouzirui/huddle/backend/internal/service/presence"
)

// Handler 在线状态WebSocket处理器
type Handler struct {
	registry *presenceService.Registry
	hub      *presenceService.Hub
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(registry *presenceService.Registry, hub *presenceService.Hub) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/presence", h.handlePresence)
}

// inboundMessage 客户端发来的状态帧
type inboundMessage struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
}

// handlePresence runs one presence connection. A connection without a
// resolvable userId is refused before the upgrade, with no registry or
// session side effects.
func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("presence upgrade failed", "user", userID, "error", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()

	// Join before snapshotting: transitions from here on queue in order
	// behind the snapshot frame, so the client never observes an event it
	// cannot reconcile.
	sub := h.hub.Join(connID, userID)
	h.registry.Connect(userID, connID)

	snapshot := h.registry.Snapshot(userID)
	if err := conn.WriteJSON(presenceModel.Event{
		Type:  presenceModel.EventInitialStatus,
		Users: snapshot,
	}); err != nil {
		slog.Warn("failed to send initial status", "user", userID, "error", err)
		h.hub.Leave(connID)
		h.registry.Disconnect(userID, connID)
		return
	}

	go h.writePump(conn, sub)
	h.readPump(conn, userID)

	// Leave first so the offline broadcast below never loops back to the
	// departing connection.
	h.hub.Leave(connID)
	h.registry.Disconnect(userID, connID)
	slog.Debug("presence connection closed", "user", userID, "conn", connID)
}

// readPump consumes client frames until the connection drops. The only
// inbound frame is the explicit status override.
func (h *Handler) readPump(conn *websocket.Conn, userID string) {
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "update-status":
			status := presenceModel.Status(msg.Status)
			if !status.Settable() {
				slog.Warn("rejected status update", "user", userID, "status", msg.Status)
				continue
			}
			h.registry.SetStatus(userID, status)
		default:
			slog.Debug("ignoring unknown presence frame", "user", userID, "type", msg.Type)
		}
	}
}

// writePump delivers queued broadcasts to the connection. Exits when the hub
// closes the subscriber channel or the connection fails.
func (h *Handler) writePump(conn *websocket.Conn, sub *presenceService.Subscriber) {
	for evt := range sub.Events {
		if err := conn.WriteJSON(evt); err != nil {
			// Unblock the read pump; teardown happens on its exit path.
			conn.Close()
			return
		}
	}
}
