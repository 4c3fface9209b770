package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(s *Server) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.SessionMiddleware).Get("/ws", s.ServeWsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.LoginHandler)
		r.Post("/auth/logout", s.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.SessionMiddleware)
			r.Get("/me", s.GetCurrentUserHandler)
			r.Get("/sessions", s.ListSessionsHandler)
			r.Get("/sessions/logs", s.ListSessionLogsHandler)
			r.Delete("/sessions/{sessionId}", s.DeleteSessionHandler)

			r.With(AdminOnly).Post("/admin/users/{userId}/sessions/terminate", s.AdminTerminateSessionsHandler)
		})
	})

	return r
}
