package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	OTPLength   = 6
	OTPValidity = 10 * time.Minute
)

var otpMax = big.NewInt(1_000_000)

// GenerateOTP returns a zero-padded 6 digit code drawn from crypto/rand
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// OTPExpiration returns the instant a code issued at now stops being valid
func OTPExpiration(now time.Time) time.Time {
	return now.Add(OTPValidity)
}

// IsOTPExpired reports whether now has reached expiresAt. Equality counts as expired.
func IsOTPExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}
