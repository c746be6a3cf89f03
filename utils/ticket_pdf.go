package utils

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

// DejaVu covers Latin, Greek and Cyrillic. Gujarati names need a Noto
// Sans Gujarati file passed through NewTicketRenderer.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	dejaVuRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	dejaVuBold []byte
)

const ticketFont = "ticket"

// TicketDetails is everything printed on a booking's PDF ticket.
type TicketDetails struct {
	TicketID    string
	EventName   string
	Venue       string
	DateTime    time.Time
	HolderName  string
	Members     []string
	Seats       int
	TotalAmount float64
	IsPerformer bool
	ArtType     string
	QRPayload   string
}

// TicketRenderer draws tickets with an embedded UTF-8 font.
type TicketRenderer struct {
	regular []byte
	bold    []byte
}

// NewTicketRenderer loads TrueType fonts from the given paths. An empty
// path keeps the bundled DejaVu face; an empty boldPath reuses the regular file.
func NewTicketRenderer(regularPath, boldPath string) (*TicketRenderer, error) {
	r := &TicketRenderer{regular: dejaVuRegular, bold: dejaVuBold}
	if regularPath != "" {
		b, err := os.ReadFile(regularPath)
		if err != nil {
			return nil, fmt.Errorf("ticket font: %w", err)
		}
		r.regular, r.bold = b, b
	}
	if boldPath != "" {
		b, err := os.ReadFile(boldPath)
		if err != nil {
			return nil, fmt.Errorf("ticket bold font: %w", err)
		}
		r.bold = b
	}
	return r, nil
}

// Render lays out an A4 ticket with the QR code on the right.
func (r *TicketRenderer) Render(t TicketDetails) ([]byte, error) {
	qrPNG, err := QRCodePNG(t.QRPayload, 256)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(ticketFont, "", r.regular)
	pdf.AddUTF8FontFromBytes(ticketFont, "B", r.bold)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load ticket font: %w", err)
	}
	pdf.SetTitle("Voice of Rajkot ticket "+t.TicketID, true)
	pdf.AddPage()

	pdf.SetFont(ticketFont, "B", 20)
	pdf.Cell(0, 12, "Voice of Rajkot")
	pdf.Ln(14)

	pdf.SetFont(ticketFont, "B", 16)
	pdf.MultiCell(120, 8, t.EventName, "", "L", false)
	pdf.Ln(2)

	line := func(label, value string) {
		pdf.SetFont(ticketFont, "B", 12)
		pdf.CellFormat(35, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont(ticketFont, "", 12)
		pdf.MultiCell(85, 8, value, "", "L", false)
	}
	line("Ticket ID", t.TicketID)
	line("Date", t.DateTime.Format("Mon, 02 Jan 2006 3:04 PM"))
	line("Venue", t.Venue)
	line("Booked by", t.HolderName)
	line("Seats", fmt.Sprintf("%d", t.Seats))
	line("Amount", fmt.Sprintf("INR %.2f", t.TotalAmount))
	if t.IsPerformer {
		line("Performing", t.ArtType)
	}
	if len(t.Members) > 0 {
		line("Attendees", strings.Join(t.Members, ", "))
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 145, 30, 50, 50, false, opts, 0, "")

	pdf.SetY(-30)
	pdf.SetFont(ticketFont, "", 9)
	pdf.CellFormat(0, 6, "Present this ticket at the entrance. Entry is subject to verification of the QR code.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
