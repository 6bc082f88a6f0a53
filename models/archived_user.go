package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeletionReasonUnauthenticated tags users purged because they never verified their email.
const DeletionReasonUnauthenticated = "unauthenticated_cleanup"

// ArchivedUser is a point-in-time copy of a deleted User kept as an audit trail
type ArchivedUser struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OriginalID        primitive.ObjectID `bson:"original_id" json:"original_id"`
	Name              string             `bson:"name" json:"name"`
	Email             string             `bson:"email" json:"email"`
	DateOfBirth       time.Time          `bson:"date_of_birth" json:"date_of_birth"`
	Authenticated     bool               `bson:"authenticated" json:"authenticated"`
	OTP               string             `bson:"otp,omitempty" json:"-"`
	OTPExpiresAt      *time.Time         `bson:"otp_expires_at,omitempty" json:"otp_expires_at,omitempty"`
	OriginalCreatedAt time.Time          `bson:"original_created_at" json:"original_created_at"`
	DeletedAt         time.Time          `bson:"deleted_at" json:"deleted_at"`
	DeletionReason    string             `bson:"deletion_reason" json:"deletion_reason"`
	RunID             string             `bson:"run_id" json:"run_id"`
}

// NewArchivedUser copies u into an archive row.
func NewArchivedUser(u User, runID, reason string, deletedAt time.Time) ArchivedUser {
	return ArchivedUser{
		ID:                primitive.NewObjectID(),
		OriginalID:        u.ID,
		Name:              u.Name,
		Email:             u.Email,
		DateOfBirth:       u.DateOfBirth,
		Authenticated:     u.Authenticated,
		OTP:               u.OTP,
		OTPExpiresAt:      u.OTPExpiresAt,
		OriginalCreatedAt: u.CreatedAt,
		DeletedAt:         deletedAt,
		DeletionReason:    reason,
		RunID:             runID,
	}
}
