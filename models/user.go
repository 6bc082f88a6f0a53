package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered birthday club member
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	DateOfBirth   time.Time          `bson:"date_of_birth" json:"date_of_birth"`
	Authenticated bool               `bson:"authenticated" json:"authenticated"`
	OTP           string             `bson:"otp,omitempty" json:"-"`
	OTPExpiresAt  *time.Time         `bson:"otp_expires_at,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// HasOTP reports whether a verification code is currently issued.
func (u *User) HasOTP() bool {
	return u.OTP != "" && u.OTPExpiresAt != nil
}

// ClearOTP drops the issued code from the in-memory copy.
func (u *User) ClearOTP() {
	u.OTP = ""
	u.OTPExpiresAt = nil
}

// UserSummary is the public view of a user returned by the API
type UserSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Authenticated bool   `json:"authenticated"`
}

// Summary builds the public view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:            u.ID.Hex(),
		Name:          u.Name,
		Email:         u.Email,
		Authenticated: u.Authenticated,
	}
}
