package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/notification"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

// RegisterInput is the registration form. Website, URL, Phone and Fax are
// honeypot fields that humans never fill in.
type RegisterInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"dateOfBirth"`

	Website string `json:"website"`
	URL     string `json:"url"`
	Phone   string `json:"phone"`
	Fax     string `json:"fax"`
}

func (in RegisterInput) honeypotFilled() bool {
	for _, f := range []string{in.Website, in.URL, in.Phone, in.Fax} {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

type RegisterResult struct {
	User      models.UserSummary
	EmailSent bool
	// Honeypot is set when the request was dropped as automated. Nothing was
	// stored and the caller should still be told it succeeded.
	Honeypot bool
}

// Register creates an unverified user and mails the verification code. A
// failed email does not undo the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if in.honeypotFilled() {
		return RegisterResult{Honeypot: true}, nil
	}

	email := normalizeEmail(in.Email)
	v := &apperrors.ValidationError{}
	validateName(v, in.Name)
	validateEmail(v, email)
	dob := validateDateOfBirth(v, in.DateOfBirth, s.today())
	if err := v.OrNil(); err != nil {
		return RegisterResult{}, err
	}

	name := utils.SanitizeInput(in.Name)

	_, err := s.users.FindByEmail(ctx, email)
	switch err = storeErr(err); {
	case err == nil:
		return RegisterResult{}, apperrors.ErrDuplicateEmail
	case !errors.Is(err, apperrors.ErrNotFound):
		return RegisterResult{}, err
	}

	code, err := s.newOTP()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("failed to generate otp: %w", err)
	}
	now := s.now()
	expiresAt := utils.OTPExpiration(now)

	user := &models.User{
		Name:          name,
		Email:         email,
		DateOfBirth:   dob,
		Authenticated: false,
		OTP:           code,
		OTPExpiresAt:  &expiresAt,
		CreatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return RegisterResult{}, storeErr(err)
	}

	result := RegisterResult{User: user.Summary(), EmailSent: true}
	if err := s.notifier.SendVerificationCode(ctx, notification.Recipient{Name: name, Email: email}, code, expiresAt); err != nil {
		s.logger.Warn("Verification email failed after registration",
			zap.String("user_id", user.ID.Hex()),
			zap.Error(err),
		)
		result.EmailSent = false
	}
	return result, nil
}

// VerifyOTP checks a submitted code and marks the user authenticated on a
// match. An expired code is discarded; a wrong code is kept so the user can
// retry until it expires.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (models.UserSummary, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	v := &apperrors.ValidationError{}
	validateEmail(v, email)
	validateOTP(v, code)
	if err := v.OrNil(); err != nil {
		return models.UserSummary{}, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return models.UserSummary{}, storeErr(err)
	}
	if user.Authenticated {
		return models.UserSummary{}, apperrors.ErrAlreadyVerified
	}
	if !user.HasOTP() {
		return models.UserSummary{}, apperrors.ErrNoOTP
	}

	if utils.IsOTPExpired(*user.OTPExpiresAt, s.now()) {
		if err := s.users.ClearOTP(ctx, user.ID); err != nil {
			return models.UserSummary{}, storeErr(err)
		}
		return models.UserSummary{}, apperrors.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(user.OTP), []byte(code)) != 1 {
		return models.UserSummary{}, apperrors.ErrInvalidOTP
	}

	if err := s.users.MarkAuthenticated(ctx, user.ID); err != nil {
		return models.UserSummary{}, storeErr(err)
	}
	user.Authenticated = true
	user.ClearOTP()
	return user.Summary(), nil
}

// ResendOTP issues a new code, replacing any previous one, and mails it
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	v := &apperrors.ValidationError{}
	validateEmail(v, email)
	if err := v.OrNil(); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return storeErr(err)
	}
	if user.Authenticated {
		return apperrors.ErrAlreadyVerified
	}

	code, err := s.newOTP()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}
	expiresAt := utils.OTPExpiration(s.now())
	if err := s.users.SetOTP(ctx, user.ID, code, expiresAt); err != nil {
		return storeErr(err)
	}

	if err := s.notifier.SendVerificationCode(ctx, notification.Recipient{Name: user.Name, Email: user.Email}, code, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrEmailDispatch, err)
	}
	return nil
}

// UserStatus describes where a user stands in the verification flow
type UserStatus struct {
	Exists            bool   `json:"exists"`
	Authenticated     bool   `json:"authenticated"`
	HasOTP            bool   `json:"hasOtp"`
	OTPExpired        bool   `json:"otpExpired"`
	NeedsVerification bool   `json:"needsVerification"`
	CanResendOTP      bool   `json:"canResendOtp"`
	Message           string `json:"message"`
}

// Status reports the verification state for email. Unknown addresses are not
// an error.
func (s *Service) Status(ctx context.Context, email string) (UserStatus, error) {
	email = normalizeEmail(email)
	v := &apperrors.ValidationError{}
	validateEmail(v, email)
	if err := v.OrNil(); err != nil {
		return UserStatus{}, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err = storeErr(err); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return UserStatus{Exists: false, Message: "User not found"}, nil
		}
		return UserStatus{}, err
	}

	st := UserStatus{
		Exists:            true,
		Authenticated:     user.Authenticated,
		HasOTP:            user.OTP != "",
		NeedsVerification: !user.Authenticated,
	}
	if !user.Authenticated && user.OTPExpiresAt != nil {
		st.OTPExpired = utils.IsOTPExpired(*user.OTPExpiresAt, s.now())
	}
	st.CanResendOTP = !user.Authenticated && (st.OTPExpired || !st.HasOTP)

	switch {
	case user.Authenticated:
		st.Message = "User is verified and active"
	case !st.HasOTP:
		st.Message = "User needs to register to receive verification code"
	case st.OTPExpired:
		st.Message = "Verification code expired. Please request a new one."
	default:
		st.Message = "Verification code sent. Please check your email."
	}
	return st, nil
}
