package repository

import (
	"context"
	"testing"
	"time"

	"github.com/raushankrgupta/birthday-club/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func archivedBatch(n int) []models.ArchivedUser {
	users := make([]models.ArchivedUser, n)
	for i := range users {
		users[i] = models.NewArchivedUser(models.User{Name: "u"}, "run-1", models.DeletionReasonUnauthenticated, time.Now())
	}
	return users
}

func TestArchiveRepository_InsertMany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("all rows", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		n, err := NewArchiveRepository(StaticCollection(mt.Coll)).InsertMany(context.Background(), archivedBatch(3))
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})

	mt.Run("ordered insert stops at first error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 2, Code: 11000, Message: "E11000 duplicate key error",
		}))
		n, err := NewArchiveRepository(StaticCollection(mt.Coll)).InsertMany(context.Background(), archivedBatch(4))
		require.Error(mt, err)
		assert.Equal(mt, 2, n)
	})

	mt.Run("empty batch", func(mt *mtest.T) {
		n, err := NewArchiveRepository(StaticCollection(mt.Coll)).InsertMany(context.Background(), nil)
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})
}

func TestInsertedBeforeFailure(t *testing.T) {
	bwe := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
		{WriteError: mongo.WriteError{Index: 5}},
		{WriteError: mongo.WriteError{Index: 1}},
	}}
	assert.Equal(t, 1, insertedBeforeFailure(bwe, 10))
	assert.Equal(t, 0, insertedBeforeFailure(mongo.BulkWriteException{}, 10))
}

func TestArchiveRepository_CountByRun(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "deleted.deletedusers", mtest.FirstBatch, bson.D{{Key: "n", Value: int64(4)}}))
		n, err := NewArchiveRepository(StaticCollection(mt.Coll)).CountByRun(context.Background(), "run-1")
		require.NoError(mt, err)
		assert.EqualValues(mt, 4, n)
	})
}
