package service

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/utils"
)

const (
	maxNameLength  = 100
	maxEmailLength = 254
	minAgeYears    = 5
	maxAgeYears    = 120
)

// normalizeEmail trims and lowercases an address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(v *apperrors.ValidationError, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		v.Add("name", "Name is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		v.Add("name", "Name must be less than 100 characters")
	case utils.ContainsScript(name):
		v.Add("name", "Name contains invalid characters")
	}
}

// validateEmail checks an already normalized address
func validateEmail(v *apperrors.ValidationError, email string) {
	switch {
	case email == "":
		v.Add("email", "Email is required")
		return
	case len(email) > maxEmailLength:
		v.Add("email", "Email is too long")
		return
	case utils.ContainsScript(email):
		v.Add("email", "Email contains invalid characters")
		return
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "Invalid email format")
		return
	}
	at := strings.LastIndex(email, "@")
	if domain := email[at+1:]; !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		v.Add("email", "Invalid email format")
	}
}

// parseDateOfBirth accepts YYYY-MM-DD or RFC 3339 and returns the calendar
// date at UTC midnight.
func parseDateOfBirth(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func validateDateOfBirth(v *apperrors.ValidationError, raw string, today time.Time) time.Time {
	if strings.TrimSpace(raw) == "" {
		v.Add("dateOfBirth", "Date of birth is required")
		return time.Time{}
	}
	dob, ok := parseDateOfBirth(raw)
	if !ok {
		v.Add("dateOfBirth", "Invalid date format")
		return time.Time{}
	}
	if dob.Before(today.AddDate(-maxAgeYears, 0, 0)) || dob.After(today.AddDate(-minAgeYears, 0, 0)) {
		v.Add("dateOfBirth", "Please enter a valid date of birth")
	}
	return dob
}

func validateOTP(v *apperrors.ValidationError, code string) {
	if len(code) != utils.OTPLength {
		v.Add("otp", "OTP must be 6 digits")
		return
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			v.Add("otp", "OTP must contain only numbers")
			return
		}
	}
}
