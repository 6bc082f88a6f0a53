package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/service"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

// Service is the set of workflows exposed over HTTP
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (service.RegisterResult, error)
	VerifyOTP(ctx context.Context, email, code string) (models.UserSummary, error)
	ResendOTP(ctx context.Context, email string) error
	Status(ctx context.Context, email string) (service.UserStatus, error)

	CleanupExpiredOTPs(ctx context.Context) (service.CleanupResult, error)
	OTPStats(ctx context.Context) (models.OTPStats, error)
	DeleteUnauthenticated(ctx context.Context) (service.DeletionResult, error)
	UserCounts(ctx context.Context) (models.UserCounts, error)
	SendBirthdayEmails(ctx context.Context) (service.BroadcastReport, error)
	TodaysBirthdays(ctx context.Context) (service.BirthdayPreview, error)
}

// Handler serves the JSON API
type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the public routes and, behind guard, the maintenance
// routes.
func (h *Handler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Post("/resend-otp", h.ResendOTP)
	r.Post("/user-status", h.UserStatus)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Post("/cleanup-expired-otps", h.CleanupExpiredOTPs)
		r.Get("/cleanup-expired-otps", h.OTPStats)

		r.Post("/delete-unauthenticated-users", h.DeleteUnauthenticatedUsers)
		r.Get("/delete-unauthenticated-users", h.UserCounts)

		r.Post("/send-birthday-emails", h.SendBirthdayEmails)
		r.Get("/send-birthday-emails", h.TodaysBirthdays)
	})
}

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst and answers 400 itself when the
// body is not valid JSON.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondError(w, h.logger, "Invalid request body", http.StatusBadRequest,
			zap.String("path", r.URL.Path), zap.Error(err))
		return false
	}
	return true
}

// clientIP is the caller address, already rewritten by middleware.RealIP
// behind a proxy.
func clientIP(r *http.Request) string {
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
