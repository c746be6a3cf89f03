package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	cache "github.com/voiceofrajkot/vor-api/cache"
	config "github.com/voiceofrajkot/vor-api/config"
	metrics "github.com/voiceofrajkot/vor-api/metrics"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	models "github.com/voiceofrajkot/vor-api/models"
	realtime "github.com/voiceofrajkot/vor-api/realtime"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

// ---------------- CREATE ----------------
func CreateBooking(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Event         string   `form:"event" json:"event" binding:"required"`
			NumberOfSeats int      `form:"numberOfSeats" json:"numberOfSeats"`
			MembersName   []string `form:"membersName" json:"membersName"`
			Username      string   `form:"username" json:"username"`
			Email         string   `form:"email" json:"email"`
			MobileNumber  string   `form:"mobileNumber" json:"mobileNumber"`
			IsPerformer   bool     `form:"isPerformer" json:"isPerformer"`
			ArtType       string   `form:"artType" json:"artType"`
			Duration      string   `form:"duration" json:"duration"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		eventID, err := primitive.ObjectIDFromHex(input.Event)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id", "field": "event"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		user, err := middleware.LoadUser(ctx, cfg, c)
		if err != nil {
			respondError(c, cfg, err, "could not load account")
			return
		}
		event, err := cfg.Store.Events().FindByID(ctx, eventID)
		if err != nil {
			respondError(c, cfg, err, "could not fetch event")
			return
		}

		// --- Contact details default to the profile ---
		req := services.BookingRequest{
			NumberOfSeats: input.NumberOfSeats,
			MembersName:   input.MembersName,
			Username:      firstNonEmpty(input.Username, user.Name),
			Email:         firstNonEmpty(input.Email, user.Email),
			MobileNumber:  firstNonEmpty(input.MobileNumber, user.MobileNumber),
			IsPerformer:   input.IsPerformer,
			ArtType:       strings.TrimSpace(input.ArtType),
			Duration:      strings.TrimSpace(input.Duration),
		}
		names, err := services.ValidateBooking(req, event, user, cfg.Now())
		if err != nil {
			respondError(c, cfg, err, "")
			return
		}
		email, err := services.ValidateEmail(req.Email)
		if err != nil {
			respondError(c, cfg, err, "")
			return
		}
		mobile, _ := services.NormalizeMobile(req.MobileNumber)

		existing, err := cfg.Store.Bookings().FindActive(ctx, user.ID, event.ID)
		switch {
		case err == nil:
			bookingExists(c, existing)
			return
		case !errors.Is(err, store.ErrNotFound):
			respondError(c, cfg, err, "could not check existing bookings")
			return
		}

		// --- Screenshot is checked before seats are held ---
		var screenshot *services.Image
		if fh, err := c.FormFile("paymentScreenshot"); err == nil {
			if screenshot, err = services.ReadImage(fh); err != nil {
				respondError(c, cfg, err, "could not read payment screenshot")
				return
			}
		}

		if err := cfg.Store.Events().ReserveSeats(ctx, event.ID, req.NumberOfSeats); err != nil {
			respondError(c, cfg, err, "could not reserve seats")
			return
		}

		now := cfg.Now()
		booking := &models.Booking{
			ID:            primitive.NewObjectID(),
			EventID:       event.ID,
			UserID:        user.ID,
			Username:      strings.TrimSpace(req.Username),
			Email:         email,
			MobileNumber:  mobile,
			NumberOfSeats: req.NumberOfSeats,
			MembersName:   names,
			IsPerformer:   req.IsPerformer,
			TotalAmount:   services.TotalAmount(event.Price, req.NumberOfSeats),
			PaymentStatus: models.PaymentPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.IsPerformer {
			booking.ArtType, booking.Duration = req.ArtType, req.Duration
		}

		if screenshot != nil {
			url, err := cfg.Uploader.Upload(ctx, screenshot.Reader(), utils.FolderPayments, screenshot.Filename)
			if err != nil {
				releaseSeats(ctx, cfg, event.ID, req.NumberOfSeats)
				cfg.Logger.Error("upload payment screenshot", zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "payment screenshot upload failed", "details": err.Error()})
				return
			}
			booking.PaymentScreenshot = url
		}

		if err := cfg.Store.Bookings().Create(ctx, booking); err != nil {
			releaseSeats(ctx, cfg, event.ID, req.NumberOfSeats)
			discardUpload(ctx, cfg, booking.PaymentScreenshot)
			if errors.Is(err, store.ErrDuplicate) {
				// Lost a race with a concurrent booking for the same event.
				existing, _ := cfg.Store.Bookings().FindActive(ctx, user.ID, event.ID)
				bookingExists(c, existing)
				return
			}
			respondError(c, cfg, err, "could not create booking")
			return
		}

		metrics.BookingCreated(booking.NumberOfSeats)
		invalidate(c, cfg, cache.GroupEvents)
		booking.EventDetails = event.Summary()
		cfg.Hub.Publish(realtime.BookingCreated, booking)

		c.JSON(http.StatusCreated, booking)
	}
}

func bookingExists(c *gin.Context, existing *models.Booking) {
	body := gin.H{"error": "you already have a booking for this event", "code": "BOOKING_EXISTS"}
	if existing != nil {
		body["bookingId"] = existing.ID.Hex()
	}
	c.JSON(http.StatusConflict, body)
}

// UploadPayment attaches or replaces the screenshot of a pending booking.
func UploadPayment(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "booking")
		if !ok {
			return
		}
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		fh, err := c.FormFile("paymentScreenshot")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paymentScreenshot file is required", "field": "paymentScreenshot"})
			return
		}
		img, err := services.ReadImage(fh)
		if err != nil {
			respondError(c, cfg, err, "could not read payment screenshot")
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		booking, err := cfg.Store.Bookings().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch booking")
			return
		}
		if booking.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
			return
		}
		if booking.PaymentStatus != models.PaymentPending {
			respondError(c, cfg, store.ErrStatusConflict, "")
			return
		}

		url, err := cfg.Uploader.Upload(ctx, img.Reader(), utils.FolderPayments, img.Filename)
		if err != nil {
			cfg.Logger.Error("upload payment screenshot", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment screenshot upload failed", "details": err.Error()})
			return
		}

		updated, err := cfg.Store.Bookings().SetScreenshot(ctx, id, url)
		if err != nil {
			discardUpload(ctx, cfg, url)
			respondError(c, cfg, err, "could not save payment screenshot")
			return
		}
		if old := booking.PaymentScreenshot; old != "" && old != url {
			if err := cfg.Uploader.Delete(ctx, old); err != nil {
				cfg.Logger.Warn("delete old payment screenshot", zap.Error(err), zap.String("url", old))
			}
		}

		cfg.Hub.Publish(realtime.BookingPaymentUploaded, updated)
		c.JSON(http.StatusOK, updated)
	}
}

// ---------------- LIST ----------------
func GetUserBookings(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		bookings, err := cfg.Store.Bookings().ListByUser(ctx, userID)
		if err != nil {
			respondError(c, cfg, err, "could not fetch bookings")
			return
		}
		if bookings == nil {
			bookings = []models.Booking{}
		}
		if err := attachEvents(ctx, cfg, bookings); err != nil {
			respondError(c, cfg, err, "could not fetch events")
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

func GetBooking(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		booking, ok := ownedBooking(ctx, c, cfg)
		if !ok {
			return
		}
		if event, err := cfg.Store.Events().FindByID(ctx, booking.EventID); err == nil {
			booking.EventDetails = event.Summary()
		}
		c.JSON(http.StatusOK, booking)
	}
}

// GetEventBookings is the admin verification view of one event.
func GetEventBookings(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "event")
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		event, err := cfg.Store.Events().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch event")
			return
		}
		event.Enrich()

		bookings, err := cfg.Store.Bookings().ListByEvent(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch bookings")
			return
		}
		if bookings == nil {
			bookings = []models.Booking{}
		}

		c.JSON(http.StatusOK, gin.H{
			"event":    event,
			"bookings": bookings,
			"stats":    services.ComputeStats(bookings),
		})
	}
}

// ---------------- VERIFY / REJECT ----------------
func VerifyBooking(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "booking")
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		booking, err := cfg.Store.Bookings().Decide(ctx, id, models.Decision{
			Status:   models.PaymentVerified,
			TicketID: services.NewTicketID(),
			At:       cfg.Now(),
		})
		if err != nil {
			respondError(c, cfg, err, "could not verify booking")
			return
		}
		metrics.BookingVerified(booking.TotalAmount)

		if event, err := cfg.Store.Events().FindByID(ctx, booking.EventID); err != nil {
			cfg.Logger.Warn("load event for verification email", zap.Error(err))
		} else {
			booking.EventDetails = event.Summary()
			subject, body := utils.BookingVerifiedEmail(booking.Username, event.Name, event.Venue,
				event.DateTime.In(cfg.Location), booking.TicketID, booking.NumberOfSeats)
			notify(ctx, cfg, booking, subject, body)
		}

		cfg.Hub.Publish(realtime.BookingVerified, booking)
		c.JSON(http.StatusOK, booking)
	}
}

func RejectBooking(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "booking")
		if !ok {
			return
		}

		var input struct {
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required", "field": "reason"})
			return
		}
		reason, err := services.ValidateRejection(input.Reason)
		if err != nil {
			respondError(c, cfg, err, "")
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		booking, err := cfg.Store.Bookings().Decide(ctx, id, models.Decision{
			Status: models.PaymentRejected,
			Reason: reason,
			At:     cfg.Now(),
		})
		if err != nil {
			respondError(c, cfg, err, "could not reject booking")
			return
		}
		releaseSeats(ctx, cfg, booking.EventID, booking.NumberOfSeats)
		metrics.BookingRejected()
		invalidate(c, cfg, cache.GroupEvents)

		eventName := "your event"
		if event, err := cfg.Store.Events().FindByID(ctx, booking.EventID); err == nil {
			booking.EventDetails = event.Summary()
			eventName = event.Name
		}
		subject, body := utils.BookingRejectedEmail(booking.Username, eventName, reason)
		notify(ctx, cfg, booking, subject, body)

		cfg.Hub.Publish(realtime.BookingRejected, booking)
		c.JSON(http.StatusOK, booking)
	}
}

// DownloadTicket streams the PDF ticket of a verified booking.
func DownloadTicket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		booking, ok := ownedBooking(ctx, c, cfg)
		if !ok {
			return
		}
		if booking.PaymentStatus != models.PaymentVerified {
			c.JSON(http.StatusConflict, gin.H{"error": "ticket is available once payment is verified", "code": "NOT_VERIFIED"})
			return
		}

		event, err := cfg.Store.Events().FindByID(ctx, booking.EventID)
		if err != nil {
			respondError(c, cfg, err, "could not fetch event")
			return
		}

		pdf, err := cfg.Tickets.Render(utils.TicketDetails{
			TicketID:    booking.TicketID,
			EventName:   event.Name,
			Venue:       event.Venue,
			DateTime:    event.DateTime.In(cfg.Location),
			HolderName:  booking.Username,
			Members:     booking.MembersName,
			Seats:       booking.NumberOfSeats,
			TotalAmount: booking.TotalAmount,
			IsPerformer: booking.IsPerformer,
			ArtType:     booking.ArtType,
			QRPayload:   services.TicketPayload(cfg.TicketSecret, booking.TicketID, booking.ID.Hex()),
		})
		if err != nil {
			respondError(c, cfg, err, "could not render ticket")
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+booking.TicketID+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

// CheckInTicket admits the holder of a scanned ticket QR. A ticket enters once.
func CheckInTicket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required", "field": "payload"})
			return
		}
		ticketID, bookingHex, ok := services.VerifyTicketPayload(cfg.TicketSecret, strings.TrimSpace(input.Payload))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticket code is not valid", "code": "INVALID_TICKET"})
			return
		}
		id, err := primitive.ObjectIDFromHex(bookingHex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticket code is not valid", "code": "INVALID_TICKET"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		booking, err := cfg.Store.Bookings().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch booking")
			return
		}
		switch {
		case booking.TicketID != ticketID:
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticket code is not valid", "code": "INVALID_TICKET"})
			return
		case booking.PaymentStatus != models.PaymentVerified:
			c.JSON(http.StatusConflict, gin.H{"error": "payment has not been verified", "code": "NOT_VERIFIED"})
			return
		case booking.CheckedInAt != nil:
			alreadyCheckedIn(c, booking)
			return
		}

		updated, err := cfg.Store.Bookings().CheckIn(ctx, id, cfg.Now())
		if errors.Is(err, store.ErrStatusConflict) {
			// Scanned at another gate in the meantime.
			alreadyCheckedIn(c, booking)
			return
		}
		if err != nil {
			respondError(c, cfg, err, "could not check in ticket")
			return
		}

		cfg.Logger.Info("ticket checked in", zap.String("ticket", updated.TicketID), zap.Int("seats", updated.NumberOfSeats))
		c.JSON(http.StatusOK, updated)
	}
}

func alreadyCheckedIn(c *gin.Context, b *models.Booking) {
	body := gin.H{"error": "ticket has already been used", "code": "ALREADY_CHECKED_IN"}
	if b.CheckedInAt != nil {
		body["checkedInAt"] = b.CheckedInAt
	}
	c.JSON(http.StatusConflict, body)
}

// ownedBooking loads the :id booking and checks the caller owns it or is an admin.
func ownedBooking(ctx context.Context, c *gin.Context, cfg *config.Config) (*models.Booking, bool) {
	id, ok := paramID(c, "id", "booking")
	if !ok {
		return nil, false
	}
	user, err := middleware.LoadUser(ctx, cfg, c)
	if err != nil {
		respondError(c, cfg, err, "could not load account")
		return nil, false
	}
	booking, err := cfg.Store.Bookings().FindByID(ctx, id)
	if err != nil {
		respondError(c, cfg, err, "could not fetch booking")
		return nil, false
	}
	if booking.UserID != user.ID && !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
		return nil, false
	}
	return booking, true
}

func attachEvents(ctx context.Context, cfg *config.Config, bookings []models.Booking) error {
	events := map[primitive.ObjectID]*models.EventSummary{}
	for i := range bookings {
		id := bookings[i].EventID
		summary, seen := events[id]
		if !seen {
			event, err := cfg.Store.Events().FindByID(ctx, id)
			switch {
			case err == nil:
				summary = event.Summary()
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
			events[id] = summary
		}
		bookings[i].EventDetails = summary
	}
	return nil
}

func releaseSeats(ctx context.Context, cfg *config.Config, eventID primitive.ObjectID, n int) {
	if err := cfg.Store.Events().ReleaseSeats(ctx, eventID, n); err != nil {
		cfg.Logger.Error("release seats", zap.String("event", eventID.Hex()), zap.Int("seats", n), zap.Error(err))
	}
}

// notify emails the booking holder. Delivery failures are logged only; the
// status change has already been stored.
func notify(ctx context.Context, cfg *config.Config, b *models.Booking, subject, body string) {
	if err := cfg.Mailer.Send(ctx, b.Email, b.Username, subject, body); err != nil {
		cfg.Logger.Warn("send booking email", zap.String("booking", b.ID.Hex()), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
