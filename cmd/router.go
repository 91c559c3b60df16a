package cmd

import (
	"fmt"
	"net/http"
	"time"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/blogem/reqtel/controllers"
	"github.com/blogem/reqtel/metrics"
	"github.com/blogem/reqtel/middleware"
)

// routerConfig carries what setupRouter needs besides the controllers
type routerConfig struct {
	Interceptor    *middleware.AuditInterceptor
	Metrics        *metrics.Collector
	AdminSubjects  []string
	AllowedOrigins []string
	SecureCookies  bool
	RequestTimeout time.Duration
}

// setupRouter configures all routes. The audit interceptor wraps the session
// middleware so every request is tracked and audited, including one whose
// session lookup panics; the actor is resolved inside the session scope.
// Recoverer is outermost and sees panics after they were audited as 500s.
func setupRouter(ctrl *controllers.Controllers, cfg routerConfig) (*chi.Mux, error) {
	r := chi.NewRouter()

	sessionHandler, err := session.Sessioner(session.Options{
		Provider:    "memory",
		CookieName:  "reqtel_session",
		Secure:      cfg.SecureCookies,
		Gclifetime:  3600, // Session lifetime in seconds
		Maxlifetime: 3600,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	r.Use(chimw.Recoverer)
	r.Use(cfg.Interceptor.Handler)
	r.Use(sessionHandler)
	r.Use(cfg.Interceptor.ResolveActor)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", ctrl.Health.Check)
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Get("/login", ctrl.Auth.Login)
	r.Get("/callback", ctrl.Auth.Callback)
	r.Get("/logout", ctrl.Auth.Logout)
	r.Post("/logout", ctrl.Auth.Logout)

	r.Route("/api", func(r chi.Router) {
		if len(cfg.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.AllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
				ExposedHeaders:   []string{middleware.RequestIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		r.Get("/auth/status", ctrl.Auth.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminSubjects))

			r.Route("/monitoring", func(r chi.Router) {
				r.Get("/stats/{source}", ctrl.Monitoring.SourceStats)
				r.Get("/status", ctrl.Monitoring.Status)
				r.Get("/load", ctrl.Monitoring.Load)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/logs", ctrl.Admin.Logs)
				r.Get("/logs/{id}", ctrl.Admin.Log)
				r.Get("/summary", ctrl.Admin.Summary)
				r.Post("/classify", ctrl.Admin.Classify)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/logins", ctrl.System.Logins)
				r.Get("/metrics", ctrl.System.Metrics)
				r.Get("/raw", ctrl.System.Raw)
			})
		})
	})

	return r, nil
}
