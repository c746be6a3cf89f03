// Package store persists users, events, bookings and posts.
//
// Two implementations exist: Mongo (production) and Memory (STORAGE_DRIVER=memory,
// also used by tests). Both return the sentinel errors below, wrapped.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/voiceofrajkot/vor-api/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrSoldOut        = errors.New("not enough seats available")
	ErrSeatUnderflow  = errors.New("cannot release more seats than booked")
	ErrStatusConflict = errors.New("booking is no longer pending")
)

type Store interface {
	Users() UserRepository
	Events() EventRepository
	Bookings() BookingRepository
	Posts() PostRepository
	Close(ctx context.Context) error
}

type UserFilter struct {
	PerformersOnly bool
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
	Save(ctx context.Context, u *models.User) error
	Count(ctx context.Context, f UserFilter) (int64, error)
}

type EventWindow string

const (
	WindowAll      EventWindow = "all"
	WindowUpcoming EventWindow = "upcoming"
	WindowPast     EventWindow = "past"
)

type EventFilter struct {
	Query  string
	Window EventWindow
	Now    time.Time
	Page   int
	Limit  int
}

type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	List(ctx context.Context, f EventFilter) ([]models.Event, int64, error)
	ListByPerformer(ctx context.Context, performerID primitive.ObjectID) ([]models.Event, error)
	Save(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ReserveSeats atomically adds n to bookedSeats unless that would exceed totalSeats.
	ReserveSeats(ctx context.Context, id primitive.ObjectID, n int) error
	// ReleaseSeats atomically subtracts n from bookedSeats, never below zero.
	ReleaseSeats(ctx context.Context, id primitive.ObjectID, n int) error
	Count(ctx context.Context, f EventFilter) (int64, error)
}

type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	FindActive(ctx context.Context, userID, eventID primitive.ObjectID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Booking, error)
	ListByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Booking, error)
	ListAll(ctx context.Context) ([]models.Booking, error)
	// SetScreenshot stores the payment proof URL while the booking is pending.
	SetScreenshot(ctx context.Context, id primitive.ObjectID, url string) (*models.Booking, error)
	// Decide moves a pending booking to d.Status. ErrStatusConflict if it is not pending.
	Decide(ctx context.Context, id primitive.ObjectID, d models.Decision) (*models.Booking, error)
	// CheckIn stamps a verified booking once. ErrStatusConflict if it is not verified or already in.
	CheckIn(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Booking, error)
}

type PostFilter struct {
	Tag      string
	Query    string
	AuthorID primitive.ObjectID
	Page     int
	Limit    int
}

type PostRepository interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	List(ctx context.Context, f PostFilter) ([]models.Post, int64, error)
	// ToggleLike adds or removes userID from the post's likes and reports the new state.
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Skip converts a 1-based page into an offset.
func Skip(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

var timeNow = time.Now
