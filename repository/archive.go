package repository

import (
	"context"
	"errors"

	"github.com/raushankrgupta/birthday-club/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ArchiveRepository stores copies of deleted users in the archive database
type ArchiveRepository struct {
	collection CollectionFunc
}

func NewArchiveRepository(collection CollectionFunc) *ArchiveRepository {
	return &ArchiveRepository{collection: collection}
}

// InsertMany stores the rows in order and returns how many were written. On a
// partial failure the count of rows written before the error is returned with
// the error.
func (r *ArchiveRepository) InsertMany(ctx context.Context, users []models.ArchivedUser) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	c, err := resolve(ctx, r.collection)
	if err != nil {
		return 0, err
	}

	docs := make([]interface{}, len(users))
	for i := range users {
		docs[i] = users[i]
	}

	res, err := c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			return insertedBeforeFailure(bwe, len(users)), classify("archive users", err)
		}
		return 0, classify("archive users", err)
	}
	return len(res.InsertedIDs), nil
}

// insertedBeforeFailure derives the written row count of an ordered insert
// from the index of its first write error.
func insertedBeforeFailure(bwe mongo.BulkWriteException, total int) int {
	if len(bwe.WriteErrors) == 0 {
		return 0
	}
	first := bwe.WriteErrors[0].Index
	for _, we := range bwe.WriteErrors {
		if we.Index < first {
			first = we.Index
		}
	}
	if first > total {
		return total
	}
	return first
}

// CountByRun returns how many archive rows belong to a cleanup run
func (r *ArchiveRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	c, err := resolve(ctx, r.collection)
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, bson.M{"run_id": runID})
	return n, classify("count archived users", err)
}
