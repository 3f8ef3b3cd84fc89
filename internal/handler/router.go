package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	activityHandler "github.com/zhouzirui/huddle/backend/internal/handler/activity"
	presenceHandler "github.com/zhouzirui/huddle/backend/internal/handler/presence"
	sessionHandler "github.com/zhouzirui/huddle/backend/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/huddle/backend/internal/middleware"
	presenceService "github.com/zhouzirui/huddle/backend/internal/service/presence"
	sessionService "github.com/zhouzirui/huddle/backend/internal/service/session"
	"github.com/zhouzirui/huddle/backend/pkg/utils"
)

// NewRouter wires HTTP and WebSocket routes to core services.
func NewRouter(sessionSvc *sessionService.Service, registry *presenceService.Registry, hub *presenceService.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(sessionSvc).RegisterRoutes(api)
		activityHandler.New(sessionSvc).RegisterRoutes(api)
		presenceHandler.New(registry, hub).RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
