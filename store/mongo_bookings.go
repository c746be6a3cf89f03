package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voiceofrajkot/vor-api/models"
)

type mongoBookings struct {
	col *mongo.Collection
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

func (r *mongoBookings) Create(ctx context.Context, b *models.Booking) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.Active = b.PaymentStatus.Active()
	_, err := r.col.InsertOne(ctx, b)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("booking for user %s: %w", b.UserID.Hex(), ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *mongoBookings) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	return findOne[models.Booking](ctx, r.col, byID(id), "booking")
}

func (r *mongoBookings) FindActive(ctx context.Context, userID, eventID primitive.ObjectID) (*models.Booking, error) {
	filter := bson.M{"user_id": userID, "event_id": eventID, "active": true}
	return findOne[models.Booking](ctx, r.col, filter, "booking")
}

func (r *mongoBookings) list(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	bookings, err := findAll[models.Booking](ctx, r.col, filter, newestFirst)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookings) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(ctx, bson.M{"user_id": userID})
}

func (r *mongoBookings) ListByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(ctx, bson.M{"event_id": eventID})
}

func (r *mongoBookings) ListAll(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx, bson.M{})
}

// updatePending applies update only while the booking is still pending.
func (r *mongoBookings) updatePending(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Booking, error) {
	filter := bson.M{"_id": id, "payment_status": models.PaymentPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out models.Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrStatusConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return &out, nil
}

func (r *mongoBookings) SetScreenshot(ctx context.Context, id primitive.ObjectID, url string) (*models.Booking, error) {
	return r.updatePending(ctx, id, bson.M{"$set": bson.M{
		"payment_screenshot": url,
		"updated_at":         timeNow(),
	}})
}

func (r *mongoBookings) Decide(ctx context.Context, id primitive.ObjectID, d models.Decision) (*models.Booking, error) {
	if !models.PaymentPending.CanTransition(d.Status) {
		return nil, fmt.Errorf("booking %s: cannot move to %q: %w", id.Hex(), d.Status, ErrStatusConflict)
	}
	set := bson.M{
		"payment_status": d.Status,
		"active":         d.Status.Active(),
		"updated_at":     d.At,
	}
	if d.Status == models.PaymentVerified {
		set["ticket_id"] = d.TicketID
		set["verified_at"] = d.At
	} else {
		set["rejection_reason"] = d.Reason
		set["rejected_at"] = d.At
	}
	return r.updatePending(ctx, id, bson.M{"$set": set})
}

// CheckIn stamps a verified ticket the first time it is scanned.
func (r *mongoBookings) CheckIn(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Booking, error) {
	filter := bson.M{
		"_id":            id,
		"payment_status": models.PaymentVerified,
		"checked_in_at":  bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"checked_in_at": at, "updated_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out models.Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrStatusConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("check in booking: %w", err)
	}
	return &out, nil
}
