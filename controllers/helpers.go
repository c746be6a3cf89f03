package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	config "github.com/voiceofrajkot/vor-api/config"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
)

const opTimeout = 10 * time.Second

func opContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), opTimeout)
}

// currentUserID returns the authenticated caller. AuthMiddleware guarantees it is set.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func paramID(c *gin.Context, name, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondError maps store and validation errors onto HTTP responses. Anything
// unrecognised is logged and answered with a generic 500 carrying fallback.
func respondError(c *gin.Context, cfg *config.Config, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrSoldOut):
		c.JSON(http.StatusConflict, gin.H{"error": "not enough seats available", "code": "SOLD_OUT"})
	case errors.Is(err, store.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "booking has already been processed", "code": "NOT_PENDING"})
	case errors.Is(err, context.DeadlineExceeded):
		cfg.Logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": fallback})
	default:
		cfg.Logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// discardUpload removes a file uploaded for a write that did not persist.
func discardUpload(ctx context.Context, cfg *config.Config, url string) {
	if url == "" {
		return
	}
	if err := cfg.Uploader.Delete(ctx, url); err != nil {
		cfg.Logger.Warn("delete orphaned upload", zap.Error(err), zap.String("url", url))
	}
}

type pageParams struct {
	Page  int
	Limit int
}

func readPage(c *gin.Context, defaultLimit, maxLimit int) pageParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return pageParams{Page: page, Limit: limit}
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// notModified answers 304 when the client already holds etag.
func notModified(c *gin.Context, etag string) bool {
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	return false
}

func jsonBody(v any) ([]byte, error) {
	return json.Marshal(v)
}
