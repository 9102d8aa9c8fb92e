package api

import (
	"net/http"
	"time"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter mounts the order endpoint. Admin routes are only mounted when a
// token validator is supplied.
func NewRouter(handlers *Handlers, tokens middleware.TokenValidator, logger *zap.Logger, timeout time.Duration) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", handlers.Health)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", handlers.CreateOrder)
		r.Get("/my-orders", handlers.MyOrders)
		r.Get("/{orderID}", handlers.GetOrder)

		if tokens != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.StaffAuth(tokens))
				r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleSupport)).Get("/", handlers.ListOrders)
				r.With(middleware.RequireRole(auth.RoleAdmin)).Patch("/{orderID}/status", handlers.UpdateStatus)
			})
		}
	})

	return r
}
