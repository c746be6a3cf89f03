package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	cache "github.com/voiceofrajkot/vor-api/cache"
	config "github.com/voiceofrajkot/vor-api/config"
	models "github.com/voiceofrajkot/vor-api/models"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

type eventListResponse struct {
	Events     []models.Event `json:"events"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// ---------------- LIST ----------------
func ListEvents(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := readPage(c, 12, 50)
		query := strings.TrimSpace(c.Query("q"))

		window := store.EventWindow(c.DefaultQuery("when", string(store.WindowAll)))
		switch window {
		case store.WindowAll, store.WindowUpcoming, store.WindowPast:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "when must be upcoming, past or all"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		key := fmt.Sprintf("list:%s:%d:%d:%s", window, p.Page, p.Limit, strings.ToLower(query))
		body, hit, err := cfg.Cache.Get(ctx, cache.GroupEvents, key)
		if err != nil {
			cfg.Logger.Warn("events cache read", zap.Error(err))
		}

		if !hit {
			events, total, err := cfg.Store.Events().List(ctx, store.EventFilter{
				Query:  query,
				Window: window,
				Now:    cfg.Now(),
				Page:   p.Page,
				Limit:  p.Limit,
			})
			if err != nil {
				respondError(c, cfg, err, "could not fetch events")
				return
			}
			for i := range events {
				events[i].Enrich()
			}
			if events == nil {
				events = []models.Event{}
			}

			body, err = jsonBody(eventListResponse{
				Events:     events,
				Page:       p.Page,
				Limit:      p.Limit,
				Total:      total,
				TotalPages: totalPages(total, p.Limit),
			})
			if err != nil {
				respondError(c, cfg, err, "could not encode events")
				return
			}
			if err := cfg.Cache.Set(ctx, cache.GroupEvents, key, body); err != nil {
				cfg.Logger.Warn("events cache write", zap.Error(err))
			}
		}

		if notModified(c, utils.GenerateETag(primitive.NilObjectID, time.Time{}, string(body))) {
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// ---------------- GET ONE ----------------
func GetEvent(cfg *config.Config) gin.HandlerFunc {
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
		if err := attachPerformers(ctx, cfg, event); err != nil {
			respondError(c, cfg, err, "could not fetch performers")
			return
		}

		if notModified(c, utils.GenerateETag(event.ID, event.UpdatedAt, event.BookedSeats, event.PerformerDetails)) {
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// ListPerformerEvents returns every event the given user performs at, newest first.
func ListPerformerEvents(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "performer")
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		events, err := cfg.Store.Events().ListByPerformer(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch events")
			return
		}
		for i := range events {
			events[i].Enrich()
		}
		if events == nil {
			events = []models.Event{}
		}
		c.JSON(http.StatusOK, events)
	}
}

// ---------------- CREATE ----------------
func CreateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		// --- Bind form fields ---
		var input struct {
			Name        string   `form:"name" json:"name" binding:"required"`
			Description string   `form:"description" json:"description"`
			DateTime    string   `form:"dateTime" json:"dateTime" binding:"required"`
			Venue       string   `form:"venue" json:"venue" binding:"required"`
			TotalSeats  int      `form:"totalSeats" json:"totalSeats"`
			Price       float64  `form:"price" json:"price"`
			Performers  []string `form:"performers" json:"performers"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		when, err := utils.ParseDateTime(input.DateTime, cfg.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dateTime format, use RFC3339 or YYYY-MM-DD HH:MM", "field": "dateTime"})
			return
		}
		if input.TotalSeats < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "totalSeats must be at least 1", "field": "totalSeats"})
			return
		}
		if input.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative", "field": "price"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		performers, err := resolvePerformers(ctx, cfg, input.Performers)
		if err != nil {
			respondError(c, cfg, err, "could not check performers")
			return
		}

		// --- Handle image upload ---
		imageURL, ok := uploadFormImage(ctx, c, cfg, "image", utils.FolderEvents)
		if !ok {
			return
		}

		now := cfg.Now()
		event := &models.Event{
			ID:          primitive.NewObjectID(),
			Name:        strings.TrimSpace(input.Name),
			Description: strings.TrimSpace(input.Description),
			DateTime:    when,
			Venue:       strings.TrimSpace(input.Venue),
			TotalSeats:  input.TotalSeats,
			Price:       input.Price,
			Image:       imageURL,
			Performers:  performers,
			CreatedBy:   userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := cfg.Store.Events().Create(ctx, event); err != nil {
			discardUpload(ctx, cfg, imageURL)
			respondError(c, cfg, err, "could not create event")
			return
		}
		invalidate(c, cfg, cache.GroupEvents)

		event.Enrich()
		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "event")
		if !ok {
			return
		}

		var input struct {
			Name        *string  `form:"name" json:"name"`
			Description *string  `form:"description" json:"description"`
			DateTime    *string  `form:"dateTime" json:"dateTime"`
			Venue       *string  `form:"venue" json:"venue"`
			TotalSeats  *int     `form:"totalSeats" json:"totalSeats"`
			Price       *float64 `form:"price" json:"price"`
			Performers  []string `form:"performers" json:"performers"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		event, err := cfg.Store.Events().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch event")
			return
		}

		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty", "field": "name"})
				return
			}
			event.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			event.Description = strings.TrimSpace(*input.Description)
		}
		if input.Venue != nil {
			if strings.TrimSpace(*input.Venue) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "venue cannot be empty", "field": "venue"})
				return
			}
			event.Venue = strings.TrimSpace(*input.Venue)
		}
		if input.DateTime != nil {
			when, err := utils.ParseDateTime(*input.DateTime, cfg.Location)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dateTime format, use RFC3339 or YYYY-MM-DD HH:MM", "field": "dateTime"})
				return
			}
			event.DateTime = when
		}
		if input.TotalSeats != nil {
			if *input.TotalSeats < 1 || *input.TotalSeats < event.BookedSeats {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("totalSeats must be at least %d (seats already booked)", max(1, event.BookedSeats)),
					"field": "totalSeats",
				})
				return
			}
			event.TotalSeats = *input.TotalSeats
		}
		if input.Price != nil {
			if *input.Price < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative", "field": "price"})
				return
			}
			event.Price = *input.Price
		}
		if input.Performers != nil {
			performers, err := resolvePerformers(ctx, cfg, input.Performers)
			if err != nil {
				respondError(c, cfg, err, "could not check performers")
				return
			}
			event.Performers = performers
		}

		oldImage := ""
		imageURL, ok := uploadFormImage(ctx, c, cfg, "image", utils.FolderEvents)
		if !ok {
			return
		}
		if imageURL != "" {
			oldImage, event.Image = event.Image, imageURL
		}

		event.UpdatedAt = cfg.Now()
		if err := cfg.Store.Events().Save(ctx, event); err != nil {
			discardUpload(ctx, cfg, imageURL)
			respondError(c, cfg, err, "could not update event")
			return
		}
		if oldImage != "" {
			if err := cfg.Uploader.Delete(ctx, oldImage); err != nil {
				cfg.Logger.Warn("delete old event image", zap.Error(err), zap.String("url", oldImage))
			}
		}
		invalidate(c, cfg, cache.GroupEvents)

		event.Enrich()
		c.JSON(http.StatusOK, event)
	}
}

// ---------------- DELETE ----------------
func DeleteEvent(cfg *config.Config) gin.HandlerFunc {
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

		bookings, err := cfg.Store.Bookings().ListByEvent(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not check bookings")
			return
		}
		for _, b := range bookings {
			if b.PaymentStatus.Active() {
				c.JSON(http.StatusConflict, gin.H{"error": "event has active bookings; reject them before deleting", "code": "HAS_BOOKINGS"})
				return
			}
		}

		if err := cfg.Store.Events().Delete(ctx, id); err != nil {
			respondError(c, cfg, err, "could not delete event")
			return
		}
		if event.Image != "" {
			if err := cfg.Uploader.Delete(ctx, event.Image); err != nil {
				cfg.Logger.Warn("delete event image", zap.Error(err), zap.String("url", event.Image))
			}
		}
		invalidate(c, cfg, cache.GroupEvents)

		c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
	}
}

// PaymentQR renders the UPI intent for paying seats×price as a PNG.
func PaymentQR(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "event")
		if !ok {
			return
		}
		if cfg.UPIID == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "online payment is not configured"})
			return
		}
		seats, err := strconv.Atoi(c.DefaultQuery("seats", "1"))
		if err != nil || seats < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seats must be a positive number"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		event, err := cfg.Store.Events().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch event")
			return
		}
		if seats > event.Available() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("only %d seats are available", event.Available())})
			return
		}

		amount := services.TotalAmount(event.Price, seats)
		png, err := utils.QRCodePNG(utils.UPIPaymentURI(cfg.UPIID, cfg.UPIPayeeName, amount, event.Name), 320)
		if err != nil {
			respondError(c, cfg, err, "could not generate QR code")
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", png)
	}
}

func attachPerformers(ctx context.Context, cfg *config.Config, event *models.Event) error {
	event.Enrich()
	if len(event.Performers) == 0 {
		event.PerformerDetails = []models.UserSummary{}
		return nil
	}
	users, err := cfg.Store.Users().FindByIDs(ctx, event.Performers)
	if err != nil {
		return err
	}
	event.PerformerDetails = make([]models.UserSummary, 0, len(users))
	for i := range users {
		event.PerformerDetails = append(event.PerformerDetails, users[i].Summary())
	}
	return nil
}

// resolvePerformers parses performer ids (repeated or comma separated) and checks
// each refers to a performer account.
func resolvePerformers(ctx context.Context, cfg *config.Config, raw []string) ([]primitive.ObjectID, error) {
	ids := []primitive.ObjectID{}
	seen := map[primitive.ObjectID]bool{}
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := primitive.ObjectIDFromHex(part)
			if err != nil {
				return nil, &services.ValidationError{Field: "performers", Message: "invalid performer id " + part}
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return ids, nil
	}

	users, err := cfg.Store.Users().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	performers := map[primitive.ObjectID]bool{}
	for _, u := range users {
		performers[u.ID] = u.IsPerformer
	}
	for _, id := range ids {
		if !performers[id] {
			return nil, &services.ValidationError{Field: "performers", Message: "user " + id.Hex() + " is not a performer"}
		}
	}
	return ids, nil
}

// uploadFormImage uploads the optional image under field. It writes the error
// response itself and reports false when the request must stop.
func uploadFormImage(ctx context.Context, c *gin.Context, cfg *config.Config, field, folder string) (string, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", true
	}
	img, err := services.ReadImage(fh)
	if err != nil {
		respondError(c, cfg, err, "could not read "+field)
		return "", false
	}
	url, err := cfg.Uploader.Upload(ctx, img.Reader(), folder, img.Filename)
	if err != nil {
		cfg.Logger.Error("upload image", zap.String("field", field), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   field + " upload failed",
			"details": err.Error(),
			"file":    fh.Filename,
		})
		return "", false
	}
	return url, true
}
