package store

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voiceofrajkot/vor-api/models"
)

type mongoUsers struct {
	col *mongo.Collection
}

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.col, byID(id), "user")
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}, "user")
}

var byIDAsc = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

func (r *mongoUsers) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	users, err := findAll[models.User](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}}, byIDAsc)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func userFilter(f UserFilter) bson.M {
	filter := bson.M{}
	if f.PerformersOnly {
		filter["is_performer"] = true
	}
	return filter
}

func (r *mongoUsers) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	users, err := findAll[models.User](ctx, r.col, userFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *mongoUsers) Save(ctx context.Context, u *models.User) error {
	res, err := r.col.ReplaceOne(ctx, byID(u.ID), u)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", u.ID.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoUsers) Count(ctx context.Context, f UserFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, userFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
