// Package ratelimit guards expensive operations with a persisted fixed-window
// counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/repository"
)

const (
	DefaultLimit  = 2
	DefaultWindow = 24 * time.Hour
)

// Store is the persistence the limiter needs. Each method must be atomic on
// its own.
type Store interface {
	ResetIfExpired(ctx context.Context, endpoint string, cutoff, now time.Time) (bool, error)
	IncrementIfBelow(ctx context.Context, endpoint string, limit int, now time.Time) (*models.RateLimitCounter, bool, error)
	Get(ctx context.Context, endpoint string) (*models.RateLimitCounter, error)
}

// Decision is the outcome of one CheckAndIncrement call
type Decision struct {
	Allowed   bool
	Count     int
	ResetTime time.Time
}

// Limiter allows at most limit calls per operation inside a window
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

func WithLimit(n int) Option {
	return func(l *Limiter) { l.limit = n }
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndIncrement consumes one slot of operation when available. A denied
// decision carries the time the current window closes and leaves the counter
// untouched.
func (l *Limiter) CheckAndIncrement(ctx context.Context, operation string) (Decision, error) {
	now := l.now()

	reset, err := l.store.ResetIfExpired(ctx, operation, now.Add(-l.window), now)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit reset for %s: %w", operation, err)
	}
	if reset {
		return Decision{Allowed: true, Count: 1, ResetTime: now.Add(l.window)}, nil
	}

	counter, ok, err := l.store.IncrementIfBelow(ctx, operation, l.limit, now)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit increment for %s: %w", operation, err)
	}
	if ok {
		return Decision{Allowed: true, Count: counter.Counter, ResetTime: counter.LastUpdated.Add(l.window)}, nil
	}

	counter, err = l.store.Get(ctx, operation)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// the row vanished between the two calls; report the full window
			return Decision{Allowed: false, Count: l.limit, ResetTime: now.Add(l.window)}, nil
		}
		return Decision{}, fmt.Errorf("rate limit lookup for %s: %w", operation, err)
	}
	return Decision{Allowed: false, Count: counter.Counter, ResetTime: counter.LastUpdated.Add(l.window)}, nil
}
