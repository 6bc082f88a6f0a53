package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP_Format(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestOTPExpiration(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(10*time.Minute), OTPExpiration(now))
}

func TestIsOTPExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"past", now.Add(-time.Second), true},
		{"equal", now, true},
		{"future", now.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOTPExpired(tt.expiresAt, now))
		})
	}
}
