package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raushankrgupta/birthday-club/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RateLimitRepository persists fixed-window counters, one document per
// endpoint. Every mutation is a single conditional update so concurrent
// callers cannot lose increments.
type RateLimitRepository struct {
	collection CollectionFunc

	indexMu      sync.Mutex
	indexesReady bool
}

func NewRateLimitRepository(collection CollectionFunc) *RateLimitRepository {
	return &RateLimitRepository{collection: collection}
}

func (r *RateLimitRepository) coll(ctx context.Context) (*mongo.Collection, error) {
	c, err := resolve(ctx, r.collection)
	if err != nil {
		return nil, err
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if !r.indexesReady {
		// IncrementIfBelow relies on this index to refuse a second document
		_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "endpoint", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return nil, classify("create rate limit indexes", err)
		}
		r.indexesReady = true
	}
	return c, nil
}

// ResetIfExpired restarts the window at now with counter 1 when the last
// update happened at or before cutoff.
func (r *RateLimitRepository) ResetIfExpired(ctx context.Context, endpoint string, cutoff, now time.Time) (bool, error) {
	c, err := r.coll(ctx)
	if err != nil {
		return false, err
	}
	res, err := c.UpdateOne(ctx,
		bson.M{"endpoint": endpoint, "last_updated": bson.M{"$lte": cutoff}},
		bson.M{"$set": bson.M{"counter": 1, "last_updated": now}},
	)
	if err != nil {
		return false, classify("reset rate limit", err)
	}
	return res.MatchedCount > 0, nil
}

// IncrementIfBelow adds one to the counter while it is under limit, creating
// the document on first use. It reports false when the limit is reached.
func (r *RateLimitRepository) IncrementIfBelow(ctx context.Context, endpoint string, limit int, now time.Time) (*models.RateLimitCounter, bool, error) {
	c, err := r.coll(ctx)
	if err != nil {
		return nil, false, err
	}

	filter := bson.M{"endpoint": endpoint, "counter": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc":         bson.M{"counter": 1},
		"$set":         bson.M{"last_updated": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	var counter models.RateLimitCounter
	err = c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err == nil {
		return &counter, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, classify("increment rate limit", err)
	}

	// The upsert lost to an existing document. Either a concurrent first call
	// created it or the limit is reached; only the plain update can tell.
	err = c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&counter)
	switch {
	case err == nil:
		return &counter, true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, false, nil
	default:
		return nil, false, classify("increment rate limit", err)
	}
}

// Get returns the counter document for endpoint
func (r *RateLimitRepository) Get(ctx context.Context, endpoint string) (*models.RateLimitCounter, error) {
	c, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}
	var counter models.RateLimitCounter
	if err := c.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&counter); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, classify("get rate limit", err)
	}
	return &counter, nil
}
