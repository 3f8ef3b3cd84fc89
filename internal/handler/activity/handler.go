package activity

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/huddle/backend/internal/service/analytics"
	sessionService "github.com/zhouzirui/huddle/backend/internal/service/session"
	"github.com/zhouzirui/huddle/backend/pkg/utils"
)

const defaultWindowDays = 7

// Handler 活动统计的HTTP处理器。累计时长、连续天数、每日分桶和徽章状态
// 都在每次请求时从会话日志重新计算，从不缓存。
type Handler struct {
	sessionSvc *sessionService.Service
}

// New 创建活动统计处理器
func New(sessionSvc *sessionService.Service) *Handler {
	return &Handler{sessionSvc: sessionSvc}
}

// RegisterRoutes 注册活动统计路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/activity", h.handleActivity)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	windowDays := defaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 366 {
			utils.RespondError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		windowDays = parsed
	}

	logs, err := h.sessionSvc.Logs(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	record := analytics.Derive(logs, windowDays, time.Now(), analytics.FocusRatio(logs))
	utils.RespondJSON(w, http.StatusOK, record)
}
