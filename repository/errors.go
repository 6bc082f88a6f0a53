package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("duplicate key")
	ErrInvalidDocument = errors.New("document failed validation")
)

const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeDocumentValidation   = 121
)

// classify turns a driver error into one of the repository kinds. Store
// connectivity problems wrap apperrors.ErrStoreUnavailable.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case isUnavailable(err):
		return fmt.Errorf("%s: %w: %v", op, apperrors.ErrStoreUnavailable, err)
	case hasCode(err, codeDocumentValidation):
		return fmt.Errorf("%s: %w", op, ErrInvalidDocument)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUnavailable(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, topology.ErrServerSelectionTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return hasCode(err, codeAuthenticationFailed) || hasCode(err, codeUnauthorized)
}

func hasCode(err error, code int) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(code)
	}
	return false
}

// CollectionFunc resolves a collection per call so the underlying client can
// be connected lazily.
type CollectionFunc func(ctx context.Context) (*mongo.Collection, error)

// StaticCollection wraps an already resolved collection.
func StaticCollection(c *mongo.Collection) CollectionFunc {
	return func(context.Context) (*mongo.Collection, error) { return c, nil }
}

func resolve(ctx context.Context, fn CollectionFunc) (*mongo.Collection, error) {
	c, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return c, nil
}
