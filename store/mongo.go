package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client   *mongo.Client
	users    *mongoUsers
	events   *mongoEvents
	bookings *mongoBookings
	posts    *mongoPosts
}

// NewMongo connects, pings and makes sure the indexes the queries rely on exist.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the db: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("db is not available: %w", err)
	}

	db := client.Database(dbName)
	m := &Mongo{
		client:   client,
		users:    &mongoUsers{col: db.Collection("users")},
		events:   &mongoEvents{col: db.Collection("events")},
		bookings: &mongoBookings{col: db.Collection("bookings")},
		posts:    &mongoPosts{col: db.Collection("posts")},
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	// At most one pending or verified booking per user and event.
	oneActive := options.Index().
		SetName("one_active_booking").
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"active": true})

	indexes := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{m.users.col, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{m.users.col, mongo.IndexModel{Keys: bson.D{{Key: "is_performer", Value: 1}}}},
		{m.events.col, mongo.IndexModel{Keys: bson.D{{Key: "date_time", Value: 1}}}},
		{m.events.col, mongo.IndexModel{Keys: bson.D{{Key: "performers", Value: 1}}}},
		{m.bookings.col, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "event_id", Value: 1}}, Options: oneActive}},
		{m.bookings.col, mongo.IndexModel{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{m.posts.col, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}},
		{m.posts.col, mongo.IndexModel{Keys: bson.D{{Key: "author_id", Value: 1}}}},
		{m.posts.col, mongo.IndexModel{Keys: bson.D{{Key: "tags", Value: 1}}}},
	}
	for _, ix := range indexes {
		if _, err := ix.col.Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.col.Name(), err)
		}
	}
	return nil
}

func (m *Mongo) Users() UserRepository       { return m.users }
func (m *Mongo) Events() EventRepository     { return m.events }
func (m *Mongo) Bookings() BookingRepository { return m.bookings }
func (m *Mongo) Posts() PostRepository       { return m.posts }

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// containsRegex matches q literally, case-insensitively.
func containsRegex(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any, what string) (*T, error) {
	var out T
	err := col.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func byID(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id}
}
