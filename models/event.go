package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	DateTime    time.Time            `bson:"date_time" json:"dateTime"`
	Venue       string               `bson:"venue" json:"venue"`
	TotalSeats  int                  `bson:"total_seats" json:"totalSeats"`
	BookedSeats int                  `bson:"booked_seats" json:"bookedSeats"`
	Price       float64              `bson:"price" json:"price"`
	Image       string               `bson:"image,omitempty" json:"image,omitempty"`
	Performers  []primitive.ObjectID `bson:"performers" json:"performers"`
	CreatedBy   primitive.ObjectID   `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updatedAt"`

	// Enriched fields
	AvailableSeats   int           `bson:"-" json:"availableSeats"`
	PerformerDetails []UserSummary `bson:"-" json:"performerDetails,omitempty"`
}

// Available is the number of seats that can still be reserved.
func (e *Event) Available() int {
	if n := e.TotalSeats - e.BookedSeats; n > 0 {
		return n
	}
	return 0
}

// HasStarted reports whether the event start time is at or before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.DateTime.After(now)
}

// Enrich fills the derived fields that are not persisted.
func (e *Event) Enrich() {
	e.AvailableSeats = e.Available()
	if e.Performers == nil {
		e.Performers = []primitive.ObjectID{}
	}
}

// EventSummary is embedded in booking responses.
type EventSummary struct {
	ID       primitive.ObjectID `json:"_id"`
	Name     string             `json:"name"`
	DateTime time.Time          `json:"dateTime"`
	Venue    string             `json:"venue"`
	Price    float64            `json:"price"`
	Image    string             `json:"image,omitempty"`
}

func (e *Event) Summary() *EventSummary {
	return &EventSummary{
		ID:       e.ID,
		Name:     e.Name,
		DateTime: e.DateTime,
		Venue:    e.Venue,
		Price:    e.Price,
		Image:    e.Image,
	}
}
