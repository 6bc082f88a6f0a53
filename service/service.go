// Package service implements the birthday club workflows on top of the
// user directory, the archive store, the rate limiter and the notifier.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/notification"
	"github.com/raushankrgupta/birthday-club/ratelimit"
	"github.com/raushankrgupta/birthday-club/repository"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserStore is the user directory
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id primitive.ObjectID) error
	MarkAuthenticated(ctx context.Context, id primitive.ObjectID) error
	ClearExpiredOTPs(ctx context.Context, now time.Time) (found, modified int64, err error)
	OTPStats(ctx context.Context, now time.Time) (models.OTPStats, error)
	CountByAuthentication(ctx context.Context) (models.UserCounts, error)
	FindUnauthenticated(ctx context.Context) ([]models.User, error)
	FindAuthenticated(ctx context.Context) ([]models.User, error)
	FindBirthdays(ctx context.Context, month time.Month, day int) ([]models.User, error)
	DeleteUnauthenticatedByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

// ArchiveStore receives copies of purged users
type ArchiveStore interface {
	InsertMany(ctx context.Context, users []models.ArchivedUser) (int, error)
	CountByRun(ctx context.Context, runID string) (int64, error)
}

type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, operation string) (ratelimit.Decision, error)
}

type Notifier interface {
	SendVerificationCode(ctx context.Context, to notification.Recipient, code string, expiresAt time.Time) error
	SendBirthdayNotices(ctx context.Context, celebrant notification.Recipient, recipients []notification.Recipient) []notification.Delivery
}

// ArchiveExporter ships an archived batch to external storage.
type ArchiveExporter interface {
	ExportArchive(ctx context.Context, runID string, users []models.ArchivedUser) (string, error)
}

type Service struct {
	users    UserStore
	archive  ArchiveStore
	limiter  RateLimiter
	notifier Notifier
	exporter ArchiveExporter
	logger   *zap.Logger

	location *time.Location
	now      func() time.Time
	newOTP   func() (string, error)
	newRunID func() string
}

type Option func(*Service)

// WithExporter enables the archive export after each archived batch.
func WithExporter(e ArchiveExporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithLocation sets the zone in which "today" is evaluated for birthdays
// and date of birth bounds.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithOTPGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newOTP = gen }
}

func New(users UserStore, archive ArchiveStore, limiter RateLimiter, notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		archive:  archive,
		limiter:  limiter,
		notifier: notifier,
		logger:   logger,
		location: time.UTC,
		now:      time.Now,
		newOTP:   utils.GenerateOTP,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storeErr maps repository kinds onto the workflow errors the api layer knows.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.ErrDuplicateEmail
	case errors.Is(err, repository.ErrInvalidDocument):
		return apperrors.NewValidationError("document", "rejected by store validation")
	default:
		return err
	}
}

// today returns the current civil date in the service location as UTC
// midnight, the same representation used for stored dates of birth.
func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
