package api

import (
	"net/http"

	"github.com/raushankrgupta/birthday-club/service"
	"github.com/raushankrgupta/birthday-club/utils"
)

type cleanupResponse struct {
	Message string `json:"message"`
	service.CleanupResult
}

type deletionResponse struct {
	Message string `json:"message"`
	service.DeletionResult
}

// CleanupExpiredOTPs handles POST /api/cleanup-expired-otps
func (h *Handler) CleanupExpiredOTPs(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CleanupExpiredOTPs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	message := "Expired OTPs cleanup completed successfully"
	if res.FoundExpiredOTPs == 0 {
		message = "No expired OTPs found to cleanup"
	}
	utils.RespondJSON(w, http.StatusOK, cleanupResponse{Message: message, CleanupResult: res})
}

// OTPStats handles GET /api/cleanup-expired-otps
func (h *Handler) OTPStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.OTPStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

// DeleteUnauthenticatedUsers handles POST /api/delete-unauthenticated-users
func (h *Handler) DeleteUnauthenticatedUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteUnauthenticated(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	message := "Unauthenticated users cleanup completed successfully"
	if res.TotalProcessed == 0 {
		message = "No unauthenticated users found to delete"
	}
	utils.RespondJSON(w, http.StatusOK, deletionResponse{Message: message, DeletionResult: res})
}

// UserCounts handles GET /api/delete-unauthenticated-users
func (h *Handler) UserCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.UserCounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, counts)
}

// SendBirthdayEmails handles POST /api/send-birthday-emails
func (h *Handler) SendBirthdayEmails(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.SendBirthdayEmails(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

// TodaysBirthdays handles GET /api/send-birthday-emails
func (h *Handler) TodaysBirthdays(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.TodaysBirthdays(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, preview)
}
