package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewTicketID returns an identifier like VOR-1A2B3C4D.
func NewTicketID() string {
	id := uuid.New()
	return "VOR-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// TicketPayload is the string encoded in a ticket's QR code: ticketId|bookingId|signature.
func TicketPayload(secret, ticketID, bookingID string) string {
	data := fmt.Sprintf("%s|%s", ticketID, bookingID)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return fmt.Sprintf("%s|%s", data, base64.RawURLEncoding.EncodeToString(h.Sum(nil)))
}

// VerifyTicketPayload checks a scanned payload and returns its ticket and booking ids.
func VerifyTicketPayload(secret, payload string) (ticketID, bookingID string, ok bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return "", "", false
	}
	expected := TicketPayload(secret, parts[0], parts[1])
	if !hmac.Equal([]byte(expected), []byte(payload)) {
		return "", "", false
	}
	return parts[0], parts[1], true
}
