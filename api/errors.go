package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string                 `json:"error"`
	Details []apperrors.FieldError `json:"details,omitempty"`
	Reset   string                 `json:"resetTime,omitempty"`
	Counts  map[string]int         `json:"counts,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	respondWithError(w, r, h.logger, err)
}

// respondWithError maps a workflow error onto its status code and body. It is
// the only place that knows the mapping.
func respondWithError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, body := classifyError(err, time.Now())

	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error(body.Error, fields...)
	} else {
		logger.Warn(body.Error, fields...)
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", body.retryAfter)
	}
	utils.RespondJSON(w, status, body.errorBody)
}

type classified struct {
	errorBody
	retryAfter string
}

func classifyError(err error, now time.Time) (int, classified) {
	var (
		ve  *apperrors.ValidationError
		rle *apperrors.RateLimitError
		mie *apperrors.MigrationIncompleteError
		pde *apperrors.PartialDeletionError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, classified{errorBody: errorBody{Error: "Invalid input data", Details: ve.Fields}}
	case errors.Is(err, apperrors.ErrDuplicateEmail):
		return http.StatusBadRequest, msg("Registration failed. Please check your details and try again.")
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, msg("User not found")
	case errors.Is(err, apperrors.ErrAlreadyVerified):
		return http.StatusBadRequest, msg("User is already verified")
	case errors.Is(err, apperrors.ErrNoOTP):
		return http.StatusBadRequest, msg("No verification code found. Please request a new one.")
	case errors.Is(err, apperrors.ErrOTPExpired):
		return http.StatusBadRequest, msg("Verification code has expired. Please request a new one.")
	case errors.Is(err, apperrors.ErrInvalidOTP):
		return http.StatusBadRequest, msg("Invalid verification code")
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, msg("Unauthorized")
	case errors.As(err, &rle):
		secs := int(math.Ceil(rle.ResetTime.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		return http.StatusTooManyRequests, classified{
			errorBody:  errorBody{Error: "Rate limit exceeded. Please try again later.", Reset: rle.ResetTime.UTC().Format(time.RFC3339)},
			retryAfter: strconv.Itoa(secs),
		}
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, msg("Database connection failed. Please try again later.")
	case errors.As(err, &mie):
		return http.StatusInternalServerError, classified{errorBody: errorBody{
			Error:  "Failed to move all users to the archive. No users were deleted.",
			Counts: map[string]int{"expected": mie.Expected, "moved": mie.Moved},
		}}
	case errors.As(err, &pde):
		return http.StatusInternalServerError, classified{errorBody: errorBody{
			Error:  "Partial deletion detected. Manual intervention required.",
			Counts: map[string]int{"expected": pde.Expected, "moved": pde.Moved, "deleted": pde.Deleted},
		}}
	case errors.Is(err, apperrors.ErrEmailDispatch):
		return http.StatusInternalServerError, msg("Failed to send verification email. Please try again later.")
	default:
		return http.StatusInternalServerError, msg("Internal server error")
	}
}

func msg(s string) classified {
	return classified{errorBody: errorBody{Error: s}}
}
