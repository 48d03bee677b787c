package api

import (
	"net/http"

	"leaderboard/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// isProbePath reports whether path is a health or documentation endpoint
// that tracing and rate limiting skip.
func isProbePath(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/openapi.yaml", "/api/docs":
		return true
	}
	return false
}

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !isProbePath(r.URL.Path)
			}),
		))
	}
}

// WithRateLimiter adds rate limiting middleware to the API routes.
// Health and documentation endpoints are never limited.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(func(next http.Handler) http.Handler {
			limited := middleware(next)
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if isProbePath(req.URL.Path) || req.Method == http.MethodOptions {
					next.ServeHTTP(w, req)
					return
				}
				limited.ServeHTTP(w, req)
			})
		})
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware)
	router.Use(loggingMiddleware)
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	for _, opt := range opts {
		opt(router)
	}

	// API routes are registered with full paths on the root router. Under a
	// PathPrefix subrouter a method mismatch on one route is lost when a
	// sibling route is tried, and GET /api/score would answer 404.
	router.HandleFunc("/api/score", handlers.SubmitScore).Methods("POST")
	router.HandleFunc("/api/scores", handlers.GetScores).Methods("GET")
	router.HandleFunc("/api/version", handlers.Version).Methods("GET")
	router.HandleFunc("/api/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/openapi.yaml", handlers.ServeOpenAPISpec).Methods("GET", "HEAD")
	router.HandleFunc("/api/docs", handlers.ServeSwaggerUI).Methods("GET")
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Preflight requests must match a route for the CORS middleware to run.
	// A matcher rather than Methods("OPTIONS") keeps unknown paths at 404
	// instead of turning them into method mismatches.
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return router
}
