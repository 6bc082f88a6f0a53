package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// BroadcastTimeout bounds POST /api/send-birthday-emails, which answers only
// after every delivery and its retries have finished.
const BroadcastTimeout = 15 * time.Minute

func routeTimeouts(next http.Handler) http.Handler {
	standard := middleware.Timeout(requestTimeout)(next)
	broadcast := middleware.Timeout(BroadcastTimeout)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/send-birthday-emails" {
			broadcast.ServeHTTP(w, r)
			return
		}
		standard.ServeHTTP(w, r)
	})
}

// NewRouter creates and configures the chi router with all middleware and routes
func NewRouter(h *Handler, auth *MaintenanceAuth, allowedOrigins []string, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(utils.LatencyMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(routeTimeouts)
	router.Use(SecurityHeaders)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "birthday-club"})
	})

	router.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, auth.Middleware)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return router
}
