package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abujamalhack/Snapchat-pro/internal/config"
	"github.com/abujamalhack/Snapchat-pro/internal/transport/http/middleware"
)

// RateLimiters holds the per-IP limiters for different endpoint types.
type RateLimiters struct {
	Submit *middleware.RateLimiter // restrictive: submissions start downloads
	Status *middleware.RateLimiter // permissive: status polling
}

// NewRouter creates a new chi router with all routes and middleware configured.
func NewRouter(cfg *config.Config, handlers *Handlers, limiters *RateLimiters) http.Handler {
	r := chi.NewRouter()

	// Basic middleware (applied to all routes)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Compression
	r.Use(chimiddleware.Compress(5))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Health check (no rate limiting)
	r.Get("/api/health", handlers.HealthHandler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Read endpoints, permissive limit for polling
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitMiddleware(limiters.Status))
			r.Get("/jobs/{job_id}", handlers.StatusHandler)
			r.Get("/requesters/{requester_id}/jobs", handlers.RequesterJobsHandler)
			r.Get("/requesters/{requester_id}/quota", handlers.QuotaHandler)
		})

		// Submit endpoint, restrictive limit
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitMiddleware(limiters.Submit))
			r.Post("/jobs", handlers.SubmitHandler)
		})
	})

	// Catch-all for undefined routes
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	})

	return r
}

// NewServer creates a new HTTP server with optimized timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
