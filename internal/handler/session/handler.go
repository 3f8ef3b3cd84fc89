package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	sessionService "github.com/zhouzirui/huddle/backend/internal/service/session"
	"github.com/zhouzirui/huddle/backend/pkg/utils"
)

// Handler 会话生命周期的HTTP处理器
type Handler struct {
	sessionSvc *sessionService.Service
}

// New 创建会话处理器
func New(sessionSvc *sessionService.Service) *Handler {
	return &Handler{sessionSvc: sessionSvc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleStartSession)
	r.Post("/sessions/batch", h.handleBatchLogs)
	r.Post("/sessions/{sessionID}/heartbeat", h.handleHeartbeat)
	r.Post("/sessions/{sessionID}/close", h.handleCloseSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Get("/users/{userID}/sessions", h.handleLogs)
	r.Delete("/users/{userID}/sessions", h.handleDeleteUserSessions)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	rec, err := h.sessionSvc.StartSession(r.Context(), payload.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"sessionId": rec.ID,
		"startTime": rec.StartTime.Format(time.RFC3339),
	})
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.sessionSvc.Heartbeat(r.Context(), sessionID)
	if errors.Is(err, sessionService.ErrSessionNotFound) {
		// Normal outcome: the client discards its cached id and starts over.
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		// No server-side retry: the next client heartbeat tries again.
		slog.Warn("heartbeat store failure", "session", sessionID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// The close body is optional: unload beacons often arrive empty or
	// truncated, and the request must still succeed.
	var payload struct {
		ActiveDurationSeconds *int64 `json:"activeDurationSeconds"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	if err := h.sessionSvc.CloseSession(r.Context(), sessionID, payload.ActiveDurationSeconds); err != nil {
		// Best-effort transport: a lost close is repaired by the reaper.
		slog.Warn("close store failure", "session", sessionID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "close failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.sessionSvc.DeleteSession(r.Context(), sessionID)
	if errors.Is(err, sessionService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleDeleteUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	deleted, err := h.sessionSvc.DeleteUserSessions(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "deleted", "count": deleted})
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	logs, err := h.sessionSvc.Logs(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleBatchLogs(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserIDs []string `json:"userIds"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.UserIDs) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "userIds is required")
		return
	}

	logs, err := h.sessionSvc.BatchLogs(r.Context(), payload.UserIDs)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, logs)
}
