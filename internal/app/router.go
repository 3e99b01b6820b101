package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tempizhere/prowly/internal/middleware"
	"github.com/tempizhere/prowly/internal/ratelimit"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
)

// NewRouter создаёт маршрутизатор со всеми хендлерами и middleware.
// Лимит частоты действует только на создание ссылок и получение метаданных,
// редирект и трекинг остаются быстрыми и без лимита.
func NewRouter(a *App, sessions *service.Sessions, limiter ratelimit.Limiter, trustedSubnet string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.SessionMiddleware(sessions, logger))

	r.Get("/ping", a.HandlePing)
	r.Get("/{code}", a.HandleRedirect)

	r.Route("/api", func(r chi.Router) {
		// Пишущие маршруты: сессия создаётся принудительно
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions, logger))
			r.With(middleware.RateLimitMiddleware(limiter, logger)).Post("/shorten", a.HandleShorten)
			r.With(middleware.RateLimitMiddleware(limiter, logger)).Post("/fetch-metadata", a.HandleFetchMetadata)
			r.Patch("/update/{code}", a.HandleUpdate)
			r.Delete("/delete/{code}", a.HandleDelete)
			r.Post("/auth/callback", a.HandleAuthCallback)
		})

		r.Get("/session", a.HandleSession)
		r.Get("/analytics/{code}", a.HandleAnalytics)
		r.Get("/user/urls", a.HandleUserLinks)
		r.Post("/claim-session-links", a.HandleClaim)
		r.Post("/track-click", a.HandleTrackClick)
		r.Post("/auth/signout", a.HandleSignout)

		r.With(middleware.TrustedSubnetMiddleware(trustedSubnet, logger)).
			Get("/internal/stats", a.HandleStats)
	})

	return r
}
