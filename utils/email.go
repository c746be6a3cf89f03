package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, to, toName, subject, htmlBody string) error
}

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type toRecipient struct {
	Email emailAddress `json:"email_address"`
}

// ZeptoMailer sends HTML email through the ZeptoMail HTTP API.
type ZeptoMailer struct {
	APIURL   string // e.g. https://api.zeptomail.in/v1.1/email
	APIKey   string // e.g. Zoho-enczapikey xxxxx
	From     string
	FromName string
	Client   *http.Client
}

func NewZeptoMailer(apiURL, apiKey, from, fromName string) *ZeptoMailer {
	return &ZeptoMailer{
		APIURL:   apiURL,
		APIKey:   apiKey,
		From:     from,
		FromName: fromName,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *ZeptoMailer) Send(ctx context.Context, to, toName, subject, htmlBody string) error {
	if m.APIURL == "" || m.APIKey == "" || m.From == "" {
		return fmt.Errorf("missing required email config")
	}

	payload := emailRequest{
		From:     emailAddress{Address: m.From, Name: m.FromName},
		To:       []toRecipient{{Email: emailAddress{Address: to, Name: toName}}},
		Subject:  subject,
		HtmlBody: htmlBody,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.APIKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}
	return nil
}

// NopMailer drops every message. Used when ZeptoMail is not configured.
type NopMailer struct{}

func (NopMailer) Send(context.Context, string, string, string, string) error { return nil }

// BookingVerifiedEmail renders the confirmation sent when an admin accepts a payment.
func BookingVerifiedEmail(name, eventName, venue string, when time.Time, ticketID string, seats int) (string, string) {
	subject := fmt.Sprintf("Your ticket for %s is confirmed", eventName)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your payment has been verified. Your booking for <b>%s</b> is confirmed.</p>
<ul>
<li>Ticket ID: <b>%s</b></li>
<li>Seats: %d</li>
<li>Venue: %s</li>
<li>Date: %s</li>
</ul>
<p>Show this ticket ID at the entrance. See you there!</p>
<p>Voice of Rajkot</p>`,
		html.EscapeString(name), html.EscapeString(eventName), html.EscapeString(ticketID),
		seats, html.EscapeString(venue), when.Format("Mon, 02 Jan 2006 3:04 PM"))
	return subject, body
}

// BookingRejectedEmail renders the notice sent when an admin rejects a payment.
func BookingRejectedEmail(name, eventName, reason string) (string, string) {
	subject := fmt.Sprintf("Your booking for %s could not be verified", eventName)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We could not verify the payment for your booking for <b>%s</b>.</p>
<p>Reason: %s</p>
<p>Your seats have been released. You are welcome to book again with a valid payment screenshot.</p>
<p>Voice of Rajkot</p>`,
		html.EscapeString(name), html.EscapeString(eventName), html.EscapeString(reason))
	return subject, body
}
