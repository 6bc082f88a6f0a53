package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MaintenanceScope is the scope claim required on maintenance bearer tokens.
const MaintenanceScope = "maintenance"

var ErrInvalidToken = errors.New("invalid maintenance token")

// MaintenanceClaims are carried by tokens issued to schedulers and operators
type MaintenanceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateMaintenanceToken issues an HS256 token for subject valid for ttl
func GenerateMaintenanceToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}

	now := time.Now()
	claims := MaintenanceClaims{
		Scope: MaintenanceScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateMaintenanceToken parses the token and checks signature, expiry and scope
func ValidateMaintenanceToken(secret, tokenString string) (*MaintenanceClaims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}

	claims := &MaintenanceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != MaintenanceScope {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
