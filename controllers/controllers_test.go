package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	cache "github.com/voiceofrajkot/vor-api/cache"
	config "github.com/voiceofrajkot/vor-api/config"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	models "github.com/voiceofrajkot/vor-api/models"
	realtime "github.com/voiceofrajkot/vor-api/realtime"
	routes "github.com/voiceofrajkot/vor-api/routes"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, r io.Reader, folder, filename string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	url := fmt.Sprintf("https://cdn.test/%s/%d-%s", folder, len(u.uploads), filename)
	u.uploads = append(u.uploads, url)
	return url, nil
}

func (u *fakeUploader) Delete(_ context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, url)
	return nil
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, _, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type testApp struct {
	cfg      *config.Config
	router   *gin.Engine
	uploader *fakeUploader
	mailer   *fakeMailer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up, mail := &fakeUploader{}, &fakeMailer{}
	tickets, err := utils.NewTicketRenderer("", "")
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:         []byte("test-secret"),
		JWTTTL:            time.Hour,
		UploadDir:         t.TempDir(),
		UPIID:             "voiceofrajkot@upi",
		UPIPayeeName:      "Voice of Rajkot",
		TicketSecret:      "ticket-secret",
		Location:          time.UTC,
		AuthRatePerMinute: 100,
		Store:             store.NewMemory(),
		Uploader:          up,
		Mailer:            mail,
		Cache:             cache.Nop{},
		Hub:               realtime.NewHub(zap.NewNop()),
		Tickets:           tickets,
		Logger:            zap.NewNop(),
		Now:               func() time.Time { return testNow },
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg)
	return &testApp{cfg: cfg, router: r, uploader: up, mailer: mail}
}

func (a *testApp) user(t *testing.T, u models.User) (*models.User, string) {
	t.Helper()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.MobileNumber == "" {
		u.MobileNumber = "9876543210"
	}
	require.NoError(t, a.cfg.Store.Users().Create(context.Background(), &u))
	token, err := middleware.GenerateToken(a.cfg, &u)
	require.NoError(t, err)
	return &u, token
}

func (a *testApp) event(t *testing.T, e models.Event) *models.Event {
	t.Helper()
	e.ID = primitive.NewObjectID()
	if e.DateTime.IsZero() {
		e.DateTime = testNow.Add(7 * 24 * time.Hour)
	}
	if e.Venue == "" {
		e.Venue = "Hemu Gadhvi Hall"
	}
	e.CreatedAt, e.UpdatedAt = testNow, testNow
	require.NoError(t, a.cfg.Store.Events().Create(context.Background(), &e))
	return &e
}

func (a *testApp) reload(t *testing.T, id primitive.ObjectID) *models.Event {
	t.Helper()
	e, err := a.cfg.Store.Events().FindByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (a *testApp) do(req *http.Request, token string, headers ...string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) json(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, token)
}

type formFile struct {
	field, name string
	data        []byte
}

func (a *testApp) multipart(t *testing.T, method, path, token string, fields map[string][]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return b
}

func bookingBody(eventID primitive.ObjectID, seats int) gin.H {
	names := make([]string, seats)
	for i := range names {
		names[i] = fmt.Sprintf("Guest %d", i+1)
	}
	return gin.H{"event": eventID.Hex(), "numberOfSeats": seats, "membersName": names}
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.json(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Asha", "email": "Asha@Example.com", "password": "secret1", "mobileNumber": "+91 98765 43210",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, w)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "asha@example.com", reg.User.Email)
	assert.Equal(t, "9876543210", reg.User.MobileNumber)
	assert.NotContains(t, w.Body.String(), "password")

	w = app.json(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "password": "secret1", "mobileNumber": "9876543210",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.json(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Short", "email": "s@example.com", "password": "123", "mobileNumber": "9876543210",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.json(http.MethodGet, "/api/auth/profile", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asha", decode[models.User](t, w).Name)
}

func TestPublicProfileHidesContactDetails(t *testing.T) {
	app := newTestApp(t)
	poet, _ := app.user(t, models.User{Name: "Poet", Email: "poet@example.com", IsPerformer: true})

	w := app.json(http.MethodGet, "/api/auth/users/"+poet.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "poet@example.com")
	assert.NotContains(t, w.Body.String(), "9876543210")

	w = app.json(http.MethodGet, "/api/auth/performers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 1)
}

func TestUpdateProfilePhoto(t *testing.T) {
	app := newTestApp(t)
	_, token := app.user(t, models.User{Name: "Asha", Email: "asha@example.com"})

	w := app.multipart(t, http.MethodPut, "/api/auth/profile", token,
		map[string][]string{"name": {"Asha Mehta"}},
		formFile{"profilePhoto", "me.txt", []byte("plain text, not an image")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, app.uploader.count())

	w = app.multipart(t, http.MethodPut, "/api/auth/profile", token,
		map[string][]string{"name": {"Asha Mehta"}, "isPerformer": {"true"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, w)
	assert.Equal(t, "Asha Mehta", res.User.Name)
	assert.True(t, res.User.IsPerformer)
	assert.NotEmpty(t, res.Token)
}

func TestCreateBookingValidation(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 3, Price: 100})
	past := app.event(t, models.Event{Name: "Yesterday", TotalSeats: 10, DateTime: testNow.Add(-time.Hour)})

	tests := []struct {
		description string
		body        gin.H
		field       string
	}{
		{"more seats than available", bookingBody(event.ID, 4), "numberOfSeats"},
		{"zero seats", bookingBody(event.ID, 0), "numberOfSeats"},
		{"names do not match seats", gin.H{"event": event.ID.Hex(), "numberOfSeats": 2, "membersName": []string{"Only one"}}, "membersName"},
		{"blank member name", gin.H{"event": event.ID.Hex(), "numberOfSeats": 2, "membersName": []string{"A", "  "}}, "membersName"},
		{"listener asks to perform", gin.H{"event": event.ID.Hex(), "numberOfSeats": 1, "membersName": []string{"A"}, "isPerformer": true, "artType": "poetry", "duration": "5 min"}, "isPerformer"},
		{"event already started", bookingBody(past.ID, 1), "event"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := app.json(http.MethodPost, "/api/bookings", listener, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.field, decode[map[string]any](t, w)["field"])
		})
	}

	assert.Zero(t, app.reload(t, event.ID).BookedSeats)
}

func TestCreateBookingReservesSeats(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	_, other := app.user(t, models.User{Name: "Other", Email: "o@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 3, Price: 150})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.Booking](t, w)
	assert.Equal(t, models.PaymentPending, booking.PaymentStatus)
	assert.Equal(t, 300.0, booking.TotalAmount)
	assert.Equal(t, "Listener", booking.Username)
	assert.Equal(t, "l@example.com", booking.Email)
	assert.Equal(t, 2, app.reload(t, event.ID).BookedSeats)

	w = app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 1))
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "BOOKING_EXISTS", body["code"])
	assert.Equal(t, booking.ID.Hex(), body["bookingId"])

	w = app.json(http.MethodPost, "/api/bookings", other, bookingBody(event.ID, 2))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.json(http.MethodPost, "/api/bookings", other, bookingBody(event.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 3, app.reload(t, event.ID).BookedSeats)

	w = app.json(http.MethodGet, "/api/bookings/user", listener, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]models.Booking](t, w)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].EventDetails)
	assert.Equal(t, "Open Mic", mine[0].EventDetails.Name)
}

func TestScreenshotCheckedBeforeUpload(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 5, Price: 100})
	fields := map[string][]string{
		"event":         {event.ID.Hex()},
		"numberOfSeats": {"1"},
		"membersName":   {"Guest"},
	}

	w := app.multipart(t, http.MethodPost, "/api/bookings", listener, fields,
		formFile{"paymentScreenshot", "pay.pdf", []byte("%PDF-1.4 not an image")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.multipart(t, http.MethodPost, "/api/bookings", listener, fields,
		formFile{"paymentScreenshot", "pay.png", pngBytes(5<<20 + 1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, app.uploader.count())
	assert.Zero(t, app.reload(t, event.ID).BookedSeats)

	w = app.multipart(t, http.MethodPost, "/api/bookings", listener, fields,
		formFile{"paymentScreenshot", "pay.png", pngBytes(1024)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.Booking](t, w)
	assert.Equal(t, 1, app.uploader.count())
	assert.Contains(t, booking.PaymentScreenshot, "payments")

	w = app.multipart(t, http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/upload-payment", listener, nil,
		formFile{"paymentScreenshot", "again.png", pngBytes(2048)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, app.uploader.count())
	assert.Equal(t, []string{booking.PaymentScreenshot}, app.uploader.deleted)
}

func TestVerifyBooking(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Ghazal Evening", TotalSeats: 10, Price: 250})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code)
	booking := decode[models.Booking](t, w)
	statsPath := "/api/bookings/event/" + event.ID.Hex()

	type eventView struct {
		Bookings []models.Booking    `json:"bookings"`
		Stats    models.BookingStats `json:"stats"`
	}
	w = app.json(http.MethodGet, statsPath, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	before := decode[eventView](t, w)
	assert.Equal(t, 0.0, before.Stats.VerifiedRevenue)
	assert.Equal(t, 500.0, before.Stats.PendingRevenue)

	w = app.json(http.MethodGet, "/api/bookings/"+booking.ID.Hex()+"/ticket", listener, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.json(http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/verify", listener, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.json(http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/verify", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decode[models.Booking](t, w)
	assert.Equal(t, models.PaymentVerified, verified.PaymentStatus)
	assert.Regexp(t, `^VOR-[0-9A-F]{8}$`, verified.TicketID)
	require.NotNil(t, verified.VerifiedAt)

	w = app.json(http.MethodGet, statsPath, admin, nil)
	after := decode[eventView](t, w)
	assert.Equal(t, 500.0, after.Stats.VerifiedRevenue)
	assert.Equal(t, 1, after.Stats.Verified)
	assert.Equal(t, 2, after.Stats.SeatsBooked)

	require.Len(t, app.mailer.sent, 1)
	assert.Equal(t, "l@example.com", app.mailer.sent[0].To)
	assert.Contains(t, app.mailer.sent[0].Body, verified.TicketID)

	w = app.json(http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/verify", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = app.json(http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/reject", admin, gin.H{"reason": "late"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.json(http.MethodGet, "/api/bookings/"+booking.ID.Hex()+"/ticket", listener, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestRejectBooking(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 10, Price: 100})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 3))
	require.Equal(t, http.StatusCreated, w.Code)
	booking := decode[models.Booking](t, w)
	rejectPath := "/api/bookings/" + booking.ID.Hex() + "/reject"

	w = app.json(http.MethodPost, rejectPath, admin, gin.H{"reason": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 3, app.reload(t, event.ID).BookedSeats)

	w = app.json(http.MethodPost, rejectPath, admin, gin.H{"reason": "Screenshot does not show the amount"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decode[models.Booking](t, w)
	assert.Equal(t, models.PaymentRejected, rejected.PaymentStatus)
	assert.Equal(t, "Screenshot does not show the amount", rejected.RejectionReason)
	assert.Zero(t, app.reload(t, event.ID).BookedSeats)

	require.Len(t, app.mailer.sent, 1)
	assert.Contains(t, app.mailer.sent[0].Body, "Screenshot does not show the amount")

	// A rejected booking no longer blocks a new one.
	w = app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 1))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBookingAccess(t *testing.T) {
	app := newTestApp(t)
	_, owner := app.user(t, models.User{Name: "Owner", Email: "owner@example.com"})
	_, stranger := app.user(t, models.User{Name: "Stranger", Email: "s@example.com"})
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 10})

	w := app.json(http.MethodPost, "/api/bookings", owner, bookingBody(event.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/bookings/" + decode[models.Booking](t, w).ID.Hex()

	tests := []struct {
		description  string
		method, path string
		token        string
		expectedCode int
	}{
		{"anonymous booking", http.MethodGet, path, "", http.StatusUnauthorized},
		{"anonymous create", http.MethodPost, "/api/bookings", "", http.StatusUnauthorized},
		{"owner reads", http.MethodGet, path, owner, http.StatusOK},
		{"stranger reads", http.MethodGet, path, stranger, http.StatusForbidden},
		{"admin reads", http.MethodGet, path, admin, http.StatusOK},
		{"listener event view", http.MethodGet, "/api/bookings/event/" + event.ID.Hex(), owner, http.StatusForbidden},
		{"listener stats", http.MethodGet, "/api/admin/stats", owner, http.StatusForbidden},
		{"unknown booking", http.MethodGet, "/api/bookings/" + primitive.NewObjectID().Hex(), admin, http.StatusNotFound},
		{"malformed id", http.MethodGet, "/api/bookings/xyz", admin, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := app.json(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
		})
	}
}

func TestEventsListAndETag(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 5; i++ {
		app.event(t, models.Event{Name: fmt.Sprintf("Upcoming %d", i), TotalSeats: 10, DateTime: testNow.Add(time.Duration(i+1) * time.Hour)})
	}
	app.event(t, models.Event{Name: "Archive night", TotalSeats: 10, DateTime: testNow.Add(-48 * time.Hour)})

	type page struct {
		Events     []models.Event `json:"events"`
		Total      int64          `json:"total"`
		TotalPages int            `json:"totalPages"`
	}

	w := app.json(http.MethodGet, "/api/events?when=upcoming&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[page](t, w)
	assert.EqualValues(t, 5, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Upcoming 0", res.Events[0].Name)
	assert.Equal(t, 10, res.Events[0].AvailableSeats)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/api/events?when=upcoming&limit=2", nil)
	assert.Equal(t, http.StatusNotModified, app.do(req, "", "If-None-Match", etag).Code)

	w = app.json(http.MethodGet, "/api/events?when=past", "", nil)
	res = decode[page](t, w)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Archive night", res.Events[0].Name)

	w = app.json(http.MethodGet, "/api/events?q=ARCHIVE", "", nil)
	assert.EqualValues(t, 1, decode[page](t, w).Total)

	w = app.json(http.MethodGet, "/api/events?when=someday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventAdministration(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	poet, poetToken := app.user(t, models.User{Name: "Poet", Email: "p@example.com", IsPerformer: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})

	fields := map[string][]string{
		"name":       {"Kavi Sammelan"},
		"dateTime":   {"2026-04-10 19:00"},
		"venue":      {"Town Hall"},
		"totalSeats": {"4"},
		"price":      {"200"},
		"performers": {poet.ID.Hex()},
	}
	image := formFile{"image", "poster.png", pngBytes(512)}

	w := app.multipart(t, http.MethodPost, "/api/events", poetToken, fields, image)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.multipart(t, http.MethodPost, "/api/events", admin, fields, image)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := decode[models.Event](t, w)
	assert.Equal(t, time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC), event.DateTime.UTC())
	assert.NotEmpty(t, event.Image)
	assert.Equal(t, 1, app.uploader.count())

	w = app.json(http.MethodGet, "/api/events/"+event.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[models.Event](t, w)
	require.Len(t, detail.PerformerDetails, 1)
	assert.Equal(t, "Poet", detail.PerformerDetails[0].Name)

	w = app.json(http.MethodGet, "/api/events/performer/"+poet.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Event](t, w), 1)

	w = app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 3))
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.json(http.MethodPut, "/api/events/"+event.ID.Hex(), admin, gin.H{"totalSeats": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.json(http.MethodPut, "/api/events/"+event.ID.Hex(), admin, gin.H{"totalSeats": 6, "venue": "Big Hall"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Event](t, w)
	assert.Equal(t, 3, updated.BookedSeats)
	assert.Equal(t, 3, updated.AvailableSeats)
	assert.Equal(t, "Big Hall", updated.Venue)

	w = app.json(http.MethodDelete, "/api/events/"+event.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPaymentQR(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 2, Price: 99})

	w := app.json(http.MethodGet, "/api/events/"+event.ID.Hex()+"/payment-qr?seats=2", listener, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = app.json(http.MethodGet, "/api/events/"+event.ID.Hex()+"/payment-qr?seats=3", listener, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.json(http.MethodGet, "/api/events/"+event.ID.Hex()+"/payment-qr", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPosts(t *testing.T) {
	app := newTestApp(t)
	poet, poetToken := app.user(t, models.User{Name: "Poet", Email: "p@example.com", IsPerformer: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})

	post := gin.H{"heading": "Monsoon", "content": "Rain on Race Course road", "tags": []string{" Rain ", "#poetry", "rain"}}
	w := app.json(http.MethodPost, "/api/posts", listener, post)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.json(http.MethodPost, "/api/posts", poetToken, post)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Post](t, w)
	assert.Equal(t, []string{"rain", "poetry"}, created.Tags)
	require.NotNil(t, created.AuthorDetails)
	assert.Equal(t, poet.ID, created.AuthorDetails.ID)

	likePath := "/api/posts/" + created.ID.Hex() + "/like"
	w = app.json(http.MethodPut, likePath, listener, nil)
	require.Equal(t, http.StatusOK, w.Code)
	like := decode[map[string]any](t, w)
	assert.Equal(t, true, like["liked"])
	assert.EqualValues(t, 1, like["likesCount"])

	w = app.json(http.MethodPut, likePath, listener, nil)
	like = decode[map[string]any](t, w)
	assert.Equal(t, false, like["liked"])
	assert.EqualValues(t, 0, like["likesCount"])

	w = app.json(http.MethodGet, "/api/posts?tag=poetry", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Posts []models.Post `json:"posts"`
		Total int64         `json:"total"`
	}](t, w)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "Poet", list.Posts[0].AuthorDetails.Name)

	w = app.json(http.MethodGet, "/api/posts/author/"+poet.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.json(http.MethodDelete, "/api/posts/"+created.ID.Hex(), listener, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = app.json(http.MethodDelete, "/api/posts/"+created.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.json(http.MethodGet, "/api/posts/"+created.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStats(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	app.user(t, models.User{Name: "Poet", Email: "p@example.com", IsPerformer: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 10, Price: 120})
	app.event(t, models.Event{Name: "Done", TotalSeats: 10, DateTime: testNow.Add(-time.Hour)})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[models.Booking](t, w).ID.Hex()
	require.Equal(t, http.StatusOK, app.json(http.MethodPost, "/api/bookings/"+id+"/verify", admin, nil).Code)

	w = app.json(http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Users          int64 `json:"users"`
		Performers     int64 `json:"performers"`
		Events         int64 `json:"events"`
		UpcomingEvents int64 `json:"upcomingEvents"`
		Bookings       struct {
			Total    int `json:"total"`
			Verified int `json:"verified"`
		} `json:"bookings"`
		VerifiedRevenue float64 `json:"verifiedRevenue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 3, stats.Users)
	assert.EqualValues(t, 1, stats.Performers)
	assert.EqualValues(t, 2, stats.Events)
	assert.EqualValues(t, 1, stats.UpcomingEvents)
	assert.Equal(t, 1, stats.Bookings.Verified)
	assert.Equal(t, 240.0, stats.VerifiedRevenue)
}

func TestAdminFeedRequiresAdminToken(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})

	w := app.json(http.MethodGet, "/api/admin/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.json(http.MethodGet, "/api/admin/ws?token="+listener, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.json(http.MethodGet, "/api/admin/ws?token="+strings.Repeat("x", 20), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// staleActiveBookings hides existing bookings from FindActive, as when two
// requests for the same event both pass the lookup before either inserts.
type staleActiveBookings struct{ store.BookingRepository }

func (staleActiveBookings) FindActive(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.Booking, error) {
	return nil, fmt.Errorf("booking: %w", store.ErrNotFound)
}

type racingStore struct{ store.Store }

func (s racingStore) Bookings() store.BookingRepository {
	return staleActiveBookings{s.Store.Bookings()}
}

func TestCreateBookingRaceReleasesSeats(t *testing.T) {
	app := newTestApp(t)
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 10, Price: 100})
	app.cfg.Store = racingStore{app.cfg.Store}

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.multipart(t, http.MethodPost, "/api/bookings", listener,
		map[string][]string{"event": {event.ID.Hex()}, "numberOfSeats": {"3"}, "membersName": {"A", "B", "C"}},
		formFile{"paymentScreenshot", "pay.png", pngBytes(1024)})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "BOOKING_EXISTS", decode[map[string]any](t, w)["code"])

	assert.Equal(t, 2, app.reload(t, event.ID).BookedSeats)
	require.Equal(t, 1, app.uploader.count())
	assert.Equal(t, app.uploader.uploads, app.uploader.deleted)
}

var errDiskFull = errors.New("disk full")

type failingEvents struct{ store.EventRepository }

func (failingEvents) Create(context.Context, *models.Event) error { return errDiskFull }
func (failingEvents) Save(context.Context, *models.Event) error   { return errDiskFull }

type failingUsers struct{ store.UserRepository }

func (failingUsers) Save(context.Context, *models.User) error { return errDiskFull }

type failingBookings struct{ store.BookingRepository }

func (failingBookings) SetScreenshot(context.Context, primitive.ObjectID, string) (*models.Booking, error) {
	return nil, errDiskFull
}

// failingWrites passes reads through and fails the writes that follow an upload.
type failingWrites struct{ store.Store }

func (s failingWrites) Events() store.EventRepository     { return failingEvents{s.Store.Events()} }
func (s failingWrites) Users() store.UserRepository       { return failingUsers{s.Store.Users()} }
func (s failingWrites) Bookings() store.BookingRepository { return failingBookings{s.Store.Bookings()} }

func TestFailedSaveDiscardsUpload(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Open Mic", TotalSeats: 10, Price: 100})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	booking := decode[models.Booking](t, w)

	app.cfg.Store = failingWrites{app.cfg.Store}
	poster := formFile{"image", "poster.png", pngBytes(512)}

	w = app.multipart(t, http.MethodPost, "/api/events", admin, map[string][]string{
		"name": {"Kavi Sammelan"}, "dateTime": {"2026-04-10 19:00"}, "venue": {"Town Hall"}, "totalSeats": {"4"},
	}, poster)
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	w = app.multipart(t, http.MethodPut, "/api/events/"+event.ID.Hex(), admin,
		map[string][]string{"venue": {"Big Hall"}}, poster)
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	var photo bytes.Buffer
	require.NoError(t, png.Encode(&photo, image.NewRGBA(image.Rect(0, 0, 40, 40))))
	w = app.multipart(t, http.MethodPut, "/api/auth/profile", listener,
		map[string][]string{"name": {"Listener"}}, formFile{"profilePhoto", "me.png", photo.Bytes()})
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	w = app.multipart(t, http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/upload-payment", listener, nil,
		formFile{"paymentScreenshot", "pay.png", pngBytes(1024)})
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	require.Equal(t, 4, app.uploader.count())
	assert.ElementsMatch(t, app.uploader.uploads, app.uploader.deleted)
}

func TestEventETagTracksPerformers(t *testing.T) {
	app := newTestApp(t)
	poet, _ := app.user(t, models.User{Name: "Poet", Email: "p@example.com", IsPerformer: true})
	event := app.event(t, models.Event{Name: "Ghazal Evening", TotalSeats: 10, Performers: []primitive.ObjectID{poet.ID}})
	path := "/api/events/" + event.ID.Hex()

	w := app.json(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, http.StatusNotModified, app.do(httptest.NewRequest(http.MethodGet, path, nil), "", "If-None-Match", etag).Code)

	poet.Name = "Poet Laureate"
	require.NoError(t, app.cfg.Store.Users().Save(context.Background(), poet))

	w = app.do(httptest.NewRequest(http.MethodGet, path, nil), "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
	detail := decode[models.Event](t, w)
	require.Len(t, detail.PerformerDetails, 1)
	assert.Equal(t, "Poet Laureate", detail.PerformerDetails[0].Name)
}

func TestCheckInTicket(t *testing.T) {
	app := newTestApp(t)
	_, admin := app.user(t, models.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})
	_, listener := app.user(t, models.User{Name: "Listener", Email: "l@example.com"})
	event := app.event(t, models.Event{Name: "Ghazal Evening", TotalSeats: 10, Price: 250})

	w := app.json(http.MethodPost, "/api/bookings", listener, bookingBody(event.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code)
	booking := decode[models.Booking](t, w)
	checkIn := func(token, payload string) *httptest.ResponseRecorder {
		return app.json(http.MethodPost, "/api/bookings/check-in", token, gin.H{"payload": payload})
	}

	pending := services.TicketPayload(app.cfg.TicketSecret, "", booking.ID.Hex())
	w = checkIn(admin, pending)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "NOT_VERIFIED", decode[map[string]any](t, w)["code"])

	w = app.json(http.MethodPost, "/api/bookings/"+booking.ID.Hex()+"/verify", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	verified := decode[models.Booking](t, w)
	payload := services.TicketPayload(app.cfg.TicketSecret, verified.TicketID, booking.ID.Hex())

	assert.Equal(t, http.StatusForbidden, checkIn(listener, payload).Code)
	assert.Equal(t, http.StatusBadRequest, checkIn(admin, "").Code)

	w = checkIn(admin, payload[:len(payload)-2]+"xx")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TICKET", decode[map[string]any](t, w)["code"])

	forged := services.TicketPayload(app.cfg.TicketSecret, "VOR-00000000", booking.ID.Hex())
	assert.Equal(t, http.StatusBadRequest, checkIn(admin, forged).Code)

	w = checkIn(admin, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	in := decode[models.Booking](t, w)
	require.NotNil(t, in.CheckedInAt)
	assert.True(t, in.CheckedInAt.Equal(testNow))

	w = checkIn(admin, payload)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_CHECKED_IN", decode[map[string]any](t, w)["code"])
}
