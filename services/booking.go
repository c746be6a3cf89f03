package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voiceofrajkot/vor-api/models"
)

// BookingRequest is what a user submits from the ticket registration form.
type BookingRequest struct {
	NumberOfSeats int
	MembersName   []string
	Username      string
	Email         string
	MobileNumber  string
	IsPerformer   bool
	ArtType       string
	Duration      string
}

// ValidateBooking applies the registration form rules against the event and the
// booking user. It returns the cleaned member names.
func ValidateBooking(req BookingRequest, event *models.Event, user *models.User, now time.Time) ([]string, error) {
	if event.HasStarted(now) {
		return nil, invalid("event", "bookings are closed for this event")
	}
	if req.NumberOfSeats < 1 {
		return nil, invalid("numberOfSeats", "at least one seat is required")
	}
	if available := event.Available(); req.NumberOfSeats > available {
		return nil, invalid("numberOfSeats", "only %d seats are available", available)
	}

	if len(req.MembersName) != req.NumberOfSeats {
		return nil, invalid("membersName", "enter a name for each of the %d seats", req.NumberOfSeats)
	}
	names := make([]string, len(req.MembersName))
	for i, n := range req.MembersName {
		names[i] = strings.TrimSpace(n)
		if names[i] == "" {
			return nil, invalid("membersName", "name of member %d is empty", i+1)
		}
	}

	if strings.TrimSpace(req.Username) == "" {
		return nil, invalid("username", "name is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, invalid("email", "email is required")
	}
	if _, err := NormalizeMobile(req.MobileNumber); err != nil {
		return nil, err
	}

	if req.IsPerformer {
		if !user.IsPerformer {
			return nil, invalid("isPerformer", "only performers can register to perform")
		}
		if strings.TrimSpace(req.ArtType) == "" {
			return nil, invalid("artType", "art type is required for performers")
		}
		if strings.TrimSpace(req.Duration) == "" {
			return nil, invalid("duration", "performance duration is required")
		}
	}
	return names, nil
}

// TotalAmount is price × seats, rounded to paise.
func TotalAmount(price float64, seats int) float64 {
	total := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(seats))).Round(2)
	f, _ := total.Float64()
	return f
}

// ComputeStats summarises an event's bookings. Rejected bookings do not hold seats.
func ComputeStats(bookings []models.Booking) models.BookingStats {
	var stats models.BookingStats
	verified, pending := decimal.Zero, decimal.Zero

	for _, b := range bookings {
		stats.TotalBookings++
		amount := decimal.NewFromFloat(b.TotalAmount)
		switch b.PaymentStatus {
		case models.PaymentPending:
			stats.Pending++
			stats.SeatsBooked += b.NumberOfSeats
			pending = pending.Add(amount)
		case models.PaymentVerified:
			stats.Verified++
			stats.SeatsBooked += b.NumberOfSeats
			verified = verified.Add(amount)
		case models.PaymentRejected:
			stats.Rejected++
		}
	}

	stats.VerifiedRevenue, _ = verified.Round(2).Float64()
	stats.PendingRevenue, _ = pending.Round(2).Float64()
	return stats
}

// ValidateRejection returns the trimmed reason or an error when it is blank.
func ValidateRejection(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", invalid("reason", "a reason is required to reject a booking")
	}
	return reason, nil
}
