package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// CanTransition reports whether an admin may move a booking from s to next.
// Only pending bookings are ever decided; verified and rejected are final.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return s == PaymentPending && (next == PaymentVerified || next == PaymentRejected)
}

// Active bookings hold seats and block a second booking for the same event.
func (s PaymentStatus) Active() bool {
	return s == PaymentPending || s == PaymentVerified
}

type Booking struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	EventID           primitive.ObjectID `bson:"event_id" json:"event"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user"`
	Username          string             `bson:"username" json:"username"`
	Email             string             `bson:"email" json:"email"`
	MobileNumber      string             `bson:"mobile_number" json:"mobileNumber"`
	NumberOfSeats     int                `bson:"number_of_seats" json:"numberOfSeats"`
	MembersName       []string           `bson:"members_name" json:"membersName"`
	IsPerformer       bool               `bson:"is_performer" json:"isPerformer"`
	ArtType           string             `bson:"art_type,omitempty" json:"artType,omitempty"`
	Duration          string             `bson:"duration,omitempty" json:"duration,omitempty"`
	TotalAmount       float64            `bson:"total_amount" json:"totalAmount"`
	PaymentStatus     PaymentStatus      `bson:"payment_status" json:"paymentStatus"`
	Active            bool               `bson:"active" json:"-"`
	PaymentScreenshot string             `bson:"payment_screenshot,omitempty" json:"paymentScreenshot,omitempty"`
	TicketID          string             `bson:"ticket_id,omitempty" json:"ticketId,omitempty"`
	RejectionReason   string             `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	VerifiedAt        *time.Time         `bson:"verified_at,omitempty" json:"verifiedAt,omitempty"`
	RejectedAt        *time.Time         `bson:"rejected_at,omitempty" json:"rejectedAt,omitempty"`
	CheckedInAt       *time.Time         `bson:"checked_in_at,omitempty" json:"checkedInAt,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updatedAt"`

	// Enriched fields
	EventDetails *EventSummary `bson:"-" json:"eventDetails,omitempty"`
}

// Decision carries the fields written when an admin verifies or rejects a booking.
type Decision struct {
	Status   PaymentStatus
	TicketID string
	Reason   string
	At       time.Time
}

// BookingStats aggregates an event's bookings for the admin table.
type BookingStats struct {
	TotalBookings   int     `json:"totalBookings"`
	Pending         int     `json:"pending"`
	Verified        int     `json:"verified"`
	Rejected        int     `json:"rejected"`
	SeatsBooked     int     `json:"seatsBooked"`
	VerifiedRevenue float64 `json:"verifiedRevenue"`
	PendingRevenue  float64 `json:"pendingRevenue"`
}
