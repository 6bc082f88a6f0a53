package repository

import (
	"context"
	"sync"
	"time"

	"github.com/raushankrgupta/birthday-club/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository is the user directory backed by the users collection
type UserRepository struct {
	collection CollectionFunc

	indexMu      sync.Mutex
	indexesReady bool
}

func NewUserRepository(collection CollectionFunc) *UserRepository {
	return &UserRepository{collection: collection}
}

func (r *UserRepository) coll(ctx context.Context) (*mongo.Collection, error) {
	c, err := resolve(ctx, r.collection)
	if err != nil {
		return nil, err
	}
	if err := r.ensureIndexes(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureIndexes creates the unique email index once per process
func (r *UserRepository) ensureIndexes(ctx context.Context, c *mongo.Collection) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if r.indexesReady {
		return nil
	}
	_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return classify("create user indexes", err)
	}
	r.indexesReady = true
	return nil
}

// otpPresent matches documents carrying a non-empty code.
var otpPresent = bson.M{"$exists": true, "$nin": bson.A{nil, ""}}

func expiredOTPFilter(now time.Time) bson.M {
	return bson.M{
		"authenticated":  false,
		"otp":            otpPresent,
		"otp_expires_at": bson.M{"$lt": now},
	}
}

// Create inserts u and sets its ID
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	c, err := r.coll(ctx)
	if err != nil {
		return err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err = c.InsertOne(ctx, u)
	return classify("insert user", err)
}

// FindByEmail returns ErrNotFound when no user has the email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	c, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, classify("find user by email", err)
	}
	return &u, nil
}

// SetOTP replaces the issued code of the user
func (r *UserRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	return r.updateOne(ctx, "set otp", id, bson.M{
		"$set": bson.M{"otp": otp, "otp_expires_at": expiresAt},
	})
}

// ClearOTP unsets the code fields of the user
func (r *UserRepository) ClearOTP(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, "clear otp", id, bson.M{
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	})
}

// MarkAuthenticated flips the flag and drops the code in one update
func (r *UserRepository) MarkAuthenticated(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, "mark authenticated", id, bson.M{
		"$set":   bson.M{"authenticated": true},
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	})
}

func (r *UserRepository) updateOne(ctx context.Context, op string, id primitive.ObjectID, update bson.M) error {
	c, err := r.coll(ctx)
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return classify(op, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredOTPs counts unauthenticated users whose code expired before now
// and unsets the code on all of them.
func (r *UserRepository) ClearExpiredOTPs(ctx context.Context, now time.Time) (found, modified int64, err error) {
	c, err := r.coll(ctx)
	if err != nil {
		return 0, 0, err
	}
	filter := expiredOTPFilter(now)

	found, err = c.CountDocuments(ctx, filter)
	if err != nil {
		return 0, 0, classify("count expired otps", err)
	}
	if found == 0 {
		return 0, 0, nil
	}

	res, err := c.UpdateMany(ctx, filter, bson.M{
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	})
	if err != nil {
		return found, 0, classify("clear expired otps", err)
	}
	return found, res.ModifiedCount, nil
}

// OTPStats reports how many unauthenticated users hold expired, active or no codes
func (r *UserRepository) OTPStats(ctx context.Context, now time.Time) (models.OTPStats, error) {
	var stats models.OTPStats
	c, err := r.coll(ctx)
	if err != nil {
		return stats, err
	}

	if stats.Expired, err = c.CountDocuments(ctx, expiredOTPFilter(now)); err != nil {
		return stats, classify("count expired otps", err)
	}
	stats.Active, err = c.CountDocuments(ctx, bson.M{
		"authenticated":  false,
		"otp":            otpPresent,
		"otp_expires_at": bson.M{"$gte": now},
	})
	if err != nil {
		return stats, classify("count active otps", err)
	}
	stats.WithoutOTP, err = c.CountDocuments(ctx, bson.M{
		"authenticated": false,
		"$or": bson.A{
			bson.M{"otp": bson.M{"$exists": false}},
			bson.M{"otp": nil},
			bson.M{"otp": ""},
		},
	})
	if err != nil {
		return stats, classify("count users without otp", err)
	}
	// counted on its own so a code without an expiry still shows up in the total
	stats.TotalUnauthenticated, err = c.CountDocuments(ctx, bson.M{"authenticated": false})
	if err != nil {
		return stats, classify("count unauthenticated users", err)
	}
	return stats, nil
}

// CountByAuthentication splits the directory by verification state
func (r *UserRepository) CountByAuthentication(ctx context.Context) (models.UserCounts, error) {
	var counts models.UserCounts
	c, err := r.coll(ctx)
	if err != nil {
		return counts, err
	}
	if counts.Unauthenticated, err = c.CountDocuments(ctx, bson.M{"authenticated": false}); err != nil {
		return counts, classify("count unauthenticated users", err)
	}
	if counts.Authenticated, err = c.CountDocuments(ctx, bson.M{"authenticated": true}); err != nil {
		return counts, classify("count authenticated users", err)
	}
	counts.Total = counts.Unauthenticated + counts.Authenticated
	return counts, nil
}

// FindUnauthenticated loads every user that never verified
func (r *UserRepository) FindUnauthenticated(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, "find unauthenticated users", bson.M{"authenticated": false})
}

// FindAuthenticated loads every verified user
func (r *UserRepository) FindAuthenticated(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, "find authenticated users", bson.M{"authenticated": true})
}

// FindBirthdays returns verified users born on the given month and day. Dates
// of birth are stored at UTC midnight, so month and day are extracted in UTC.
func (r *UserRepository) FindBirthdays(ctx context.Context, month time.Month, day int) ([]models.User, error) {
	filter := bson.M{
		"authenticated": true,
		"$expr": bson.M{
			"$and": bson.A{
				bson.M{"$eq": bson.A{bson.M{"$month": "$date_of_birth"}, int(month)}},
				bson.M{"$eq": bson.A{bson.M{"$dayOfMonth": "$date_of_birth"}, day}},
			},
		},
	}
	return r.find(ctx, "find birthdays", filter)
}

func (r *UserRepository) find(ctx context.Context, op string, filter bson.M) ([]models.User, error) {
	c, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, classify(op, err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, classify(op, err)
	}
	return users, nil
}

// DeleteUnauthenticatedByIDs removes the listed users that are still
// unauthenticated. Users verified since they were read are left alone.
func (r *UserRepository) DeleteUnauthenticatedByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	c, err := r.coll(ctx)
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, bson.M{
		"_id":           bson.M{"$in": ids},
		"authenticated": false,
	})
	if err != nil {
		return 0, classify("delete unauthenticated users", err)
	}
	return res.DeletedCount, nil
}
