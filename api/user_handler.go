package api

import (
	"net/http"

	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/service"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

const registeredMessage = "User registered successfully. Please check your email for the verification code."

// VerifyOTPRequest represents the payload for verifying an OTP
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// EmailRequest is the payload of resend-otp and user-status
type EmailRequest struct {
	Email string `json:"email"`
}

type registerResponse struct {
	Message   string              `json:"message"`
	Warning   string              `json:"warning,omitempty"`
	User      *models.UserSummary `json:"user,omitempty"`
	EmailSent *bool               `json:"emailSent,omitempty"`
}

type userResponse struct {
	Message string             `json:"message"`
	User    models.UserSummary `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register handles POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		utils.LogSecurityEvent(h.logger, "registration_failed", clientIP(r), zap.Error(err))
		h.writeError(w, r, err)
		return
	}

	if res.Honeypot {
		utils.LogSecurityEvent(h.logger, "honeypot_triggered", clientIP(r), zap.String("user_agent", r.UserAgent()))
		utils.RespondJSON(w, http.StatusCreated, registerResponse{Message: registeredMessage})
		return
	}

	utils.LogSecurityEvent(h.logger, "user_registered", clientIP(r), zap.String("user_id", res.User.ID))
	resp := registerResponse{Message: registeredMessage, User: &res.User, EmailSent: &res.EmailSent}
	if !res.EmailSent {
		resp.Message = "User registered successfully"
		resp.Warning = "We could not send the verification email. Please request a new code."
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// VerifyOTP handles POST /api/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		utils.LogSecurityEvent(h.logger, "otp_verification_failed", clientIP(r), zap.Error(err))
		h.writeError(w, r, err)
		return
	}

	utils.LogSecurityEvent(h.logger, "otp_verified", clientIP(r), zap.String("user_id", user.ID))
	utils.RespondJSON(w, http.StatusOK, userResponse{
		Message: "Email verified successfully. Welcome to Birthday Club!",
		User:    user,
	})
}

// ResendOTP handles POST /api/resend-otp
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.ResendOTP(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.LogSecurityEvent(h.logger, "otp_resent", clientIP(r))
	utils.RespondJSON(w, http.StatusOK, messageResponse{Message: "New verification code sent to your email"})
}

// UserStatus handles POST /api/user-status
func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	st, err := h.svc.Status(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, st)
}
