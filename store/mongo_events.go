package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voiceofrajkot/vor-api/models"
)

type mongoEvents struct {
	col *mongo.Collection
}

func (r *mongoEvents) Create(ctx context.Context, e *models.Event) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *mongoEvents) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return findOne[models.Event](ctx, r.col, byID(id), "event")
}

func eventFilter(f EventFilter) bson.M {
	filter := bson.M{}
	if f.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"name": containsRegex(f.Query)},
			bson.M{"venue": containsRegex(f.Query)},
		}
	}
	switch f.Window {
	case WindowUpcoming:
		filter["date_time"] = bson.M{"$gt": f.Now}
	case WindowPast:
		filter["date_time"] = bson.M{"$lte": f.Now}
	}
	return filter
}

func (r *mongoEvents) List(ctx context.Context, f EventFilter) ([]models.Event, int64, error) {
	filter := eventFilter(f)

	order := -1
	if f.Window == WindowUpcoming {
		order = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date_time", Value: order}}).
		SetSkip(int64(Skip(f.Page, f.Limit))).
		SetLimit(int64(f.Limit))

	events, err := findAll[models.Event](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

func (r *mongoEvents) ListByPerformer(ctx context.Context, performerID primitive.ObjectID) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_time", Value: -1}})
	events, err := findAll[models.Event](ctx, r.col, bson.M{"performers": performerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list performer events: %w", err)
	}
	return events, nil
}

func (r *mongoEvents) Save(ctx context.Context, e *models.Event) error {
	// booked_seats is owned by Reserve/ReleaseSeats; never overwrite it from a stale read.
	update := bson.M{"$set": bson.M{
		"name":        e.Name,
		"description": e.Description,
		"date_time":   e.DateTime,
		"venue":       e.Venue,
		"total_seats": e.TotalSeats,
		"price":       e.Price,
		"image":       e.Image,
		"performers":  e.Performers,
		"updated_at":  e.UpdatedAt,
	}}
	filter := bson.M{"_id": e.ID, "booked_seats": bson.M{"$lte": e.TotalSeats}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, e.ID); err != nil {
			return err
		}
		return fmt.Errorf("event %s: total seats below booked seats: %w", e.ID.Hex(), ErrSoldOut)
	}
	return nil
}

func (r *mongoEvents) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoEvents) ReserveSeats(ctx context.Context, id primitive.ObjectID, n int) error {
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$booked_seats", n}},
			"$total_seats",
		}},
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"booked_seats": n}})
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("event %s: %w", id.Hex(), ErrSoldOut)
	}
	return nil
}

func (r *mongoEvents) ReleaseSeats(ctx context.Context, id primitive.ObjectID, n int) error {
	filter := bson.M{"_id": id, "booked_seats": bson.M{"$gte": n}}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"booked_seats": -n}})
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("event %s: %w", id.Hex(), ErrSeatUnderflow)
	}
	return nil
}

func (r *mongoEvents) Count(ctx context.Context, f EventFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, eventFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
