/**
 * @description
 * This file sets up the HTTP router for the fund-transfer service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the fund-transfer service.
func Routes(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	// Does not bound /api/transfer: the coordinator detaches from the request context.
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fund transfer API running"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.LoginHandler)
		r.Get("/users", h.ListUsersHandler)
		r.Get("/users/{id}", h.GetUserHandler)

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.tokens, h.logger))

			r.Post("/transfer", h.TransferHandler)
			r.Get("/audit/history/{userId}", h.HistoryHandler)
		})
	})

	return r
}
