package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestExtractPublicID(t *testing.T) {
	tests := map[string]string{
		"https://res.cloudinary.com/demo/image/upload/v1234567890/events/abc123.jpg":                   "events/abc123",
		"https://res.cloudinary.com/demo/image/upload/voice-of-rajkot/payments/p1.png":                 "voice-of-rajkot/payments/p1",
		"https://res.cloudinary.com/demo/image/upload/v99/voice-of-rajkot/profiles/v2/photo.jpeg":      "voice-of-rajkot/profiles/v2/photo",
	}
	for in, want := range tests {
		got, err := extractPublicID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := extractPublicID("https://example.com/not/cloudinary.png")
	assert.Error(t, err)
}

func TestUPIPaymentURI(t *testing.T) {
	uri := UPIPaymentURI("vor@upi", "Voice of Rajkot", 450, "Kavi Sammelan")
	require.True(t, strings.HasPrefix(uri, "upi://pay?"))

	q, err := url.ParseQuery(strings.TrimPrefix(uri, "upi://pay?"))
	require.NoError(t, err)
	assert.Equal(t, "vor@upi", q.Get("pa"))
	assert.Equal(t, "Voice of Rajkot", q.Get("pn"))
	assert.Equal(t, "450.00", q.Get("am"))
	assert.Equal(t, "INR", q.Get("cu"))
	assert.Equal(t, "Kavi Sammelan", q.Get("tn"))
}

func TestQRCodePNG(t *testing.T) {
	data, err := QRCodePNG("upi://pay?pa=vor@upi", 128)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestTicketRenderer(t *testing.T) {
	r, err := NewTicketRenderer("", "")
	require.NoError(t, err)

	pdf, err := r.Render(TicketDetails{
		TicketID:    "VOR-ABCD1234",
		EventName:   "Kavi Sammelan",
		Venue:       "Hemu Gadhvi Hall",
		DateTime:    time.Date(2026, 11, 2, 19, 0, 0, 0, time.UTC),
		HolderName:  "Asha",
		Members:     []string{"Asha", "Ravi"},
		Seats:       2,
		TotalAmount: 300,
		QRPayload:   "VOR-ABCD1234|id|sig",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	// Non-ASCII values go through an embedded Identity-H font, not a core font.
	pdf, err = r.Render(TicketDetails{
		TicketID:   "VOR-EFGH5678",
		EventName:  "Müshaira Ñight",
		Venue:      "Hemu Gadhvi Hall",
		DateTime:   time.Date(2026, 11, 2, 19, 0, 0, 0, time.UTC),
		HolderName: "રાજ Zoë",
		Members:    []string{"Zoë", "Ольга"},
		Seats:      2,
		QRPayload:  "VOR-EFGH5678|id|sig",
	})
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "/Identity-H")
	assert.Contains(t, string(pdf), "/FontFile2")
	assert.NotContains(t, string(pdf), "/Helvetica")

	_, err = NewTicketRenderer(filepath.Join(t.TempDir(), "missing.ttf"), "")
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	got, err := ParseDateTime("2026-11-02T19:00:00+05:30", loc)
	require.NoError(t, err)
	assert.Equal(t, 13, got.UTC().Hour())
	assert.Equal(t, 30, got.UTC().Minute())

	got, err = ParseDateTime("2026-11-02 19:00", loc)
	require.NoError(t, err)
	assert.Equal(t, 19, got.Hour())
	assert.Equal(t, loc, got.Location())

	_, err = ParseDateTime("next friday", loc)
	assert.Error(t, err)
}

func TestGenerateETag(t *testing.T) {
	id := primitive.NewObjectID()
	now := time.Now()
	a := GenerateETag(id, now)
	assert.Equal(t, a, GenerateETag(id, now))
	assert.NotEqual(t, a, GenerateETag(id, now.Add(time.Second)))
	assert.NotEqual(t, a, GenerateETag(id, now, 2))
	assert.True(t, strings.HasPrefix(a, `W/"`))
}

func TestFitImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1600, 400))))

	out, err := FitImage(buf.Bytes(), 800)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	_, err = FitImage([]byte("not an image"), 800)
	assert.Error(t, err)
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://localhost:8080/")
	require.NoError(t, err)

	content := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR<script>alert(document.cookie)</script>"
	link, err := u.Upload(context.Background(), strings.NewReader(content), FolderPayments, "proof.html")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "http://localhost:8080/uploads/payments/"))
	assert.True(t, strings.HasSuffix(link, ".png"), link)

	rel := strings.TrimPrefix(link, "http://localhost:8080/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	jpg, err := u.Upload(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}), FolderProfiles, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(jpg, ".jpg"), jpg)

	_, err = u.Upload(context.Background(), strings.NewReader("<html><script>alert(1)</script></html>"), FolderPayments, "proof.png")
	assert.Error(t, err)

	require.NoError(t, u.Delete(context.Background(), link))
	_, err = os.Stat(filepath.Join(dir, rel))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, u.Delete(context.Background(), "http://localhost:8080/uploads/../../etc/passwd"))
}

func TestZeptoMailerSend(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-enczapikey key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := NewZeptoMailer(srv.URL, "Zoho-enczapikey key", "noreply@voiceofrajkot.in", "Voice of Rajkot")
	subject, body := BookingRejectedEmail("Asha", "Open Mic", "<blurry>")
	err := m.Send(context.Background(), "asha@example.com", "Asha", subject, body)

	// ZeptoMail answers 200/202; anything else is an error
	assert.Error(t, err)
	assert.Equal(t, "asha@example.com", got.To[0].Email.Address)
	assert.Contains(t, got.HtmlBody, "&lt;blurry&gt;")

	assert.Error(t, (&ZeptoMailer{}).Send(context.Background(), "a@b.c", "", "s", "b"))
}
