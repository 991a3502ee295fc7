package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-notify-api/internal/application/dispatch"
	"github.com/go-notify-api/internal/application/notification"
	"github.com/go-notify-api/internal/config"
	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/transport/http/handler"
	appmiddleware "github.com/go-notify-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticator := appmiddleware.NewAuthenticator(deps.Verifier, deps.TenantRepo, deps.MembershipRepo)
	authMw := appmiddleware.Auth(authenticator)

	// 5 requests/second, burst of 10 — applied to the websocket handshake,
	// which does a tenant lookup before any credential is proven valid.
	handshakeRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	notifSvc := notification.NewService(deps.NotificationRepo)
	dispatchSvc := dispatch.NewService(notifSvc, deps.Hub, deps.Queue, deps.Log)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(notifSvc, dispatchSvc)
	wsH := handler.NewWSHandler(authenticator, deps.Hub, cfg.AllowedOrigins, deps.Log)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)

		// The handshake authenticates inline (token may arrive as a query
		// parameter), so it sits outside the auth middleware group.
		r.With(handshakeRL.Limit).Get("/ws", wsH.Connect)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Delete("/notifications/read", notifH.DeleteAllRead)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)
			r.Delete("/notifications/{id}", notifH.Delete)

			// Internal producers only.
			r.With(appmiddleware.RequireRole(domain.RoleService, domain.RoleAdmin)).
				Post("/notifications", notifH.Create)

			r.With(appmiddleware.RequireRole(domain.RoleAdmin)).
				Get("/realtime/stats", wsH.Stats)
		})
	})

	return r
}
