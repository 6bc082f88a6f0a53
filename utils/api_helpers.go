package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RespondJSON sends a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, so an encode failure can only be dropped
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError sends a JSON error response and logs the message at warn level.
func RespondError(w http.ResponseWriter, logger *zap.Logger, message string, status int, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(message, append(fields, zap.Int("status", status))...)
	}
	RespondJSON(w, status, map[string]string{"error": message})
}

// LatencyMiddleware logs method, path, status and duration of each request
func LatencyMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
