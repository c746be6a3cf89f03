package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voiceofrajkot/vor-api/models"
)

type mongoPosts struct {
	col *mongo.Collection
}

func (r *mongoPosts) Create(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *mongoPosts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return findOne[models.Post](ctx, r.col, byID(id), "post")
}

func (r *mongoPosts) List(ctx context.Context, f PostFilter) ([]models.Post, int64, error) {
	filter := bson.M{}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}
	if !f.AuthorID.IsZero() {
		filter["author_id"] = f.AuthorID
	}
	if f.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"heading": containsRegex(f.Query)},
			bson.M{"content": containsRegex(f.Query)},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetSkip(int64(Skip(f.Page, f.Limit))).SetLimit(int64(f.Limit))
	}
	posts, err := findAll[models.Post](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

func (r *mongoPosts) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	likes := bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"likes": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{userID, likes}},
				bson.M{"$setDifference": bson.A{likes, bson.A{userID}}},
				bson.M{"$concatArrays": bson.A{likes, bson.A{userID}}},
			}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out models.Post
	err := r.col.FindOneAndUpdate(ctx, byID(postID), pipeline, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("post %s: %w", postID.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("toggle like: %w", err)
	}
	return &out, out.LikedBy(userID), nil
}

func (r *mongoPosts) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
