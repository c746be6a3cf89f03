package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	config "github.com/voiceofrajkot/vor-api/config"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
)

// AdminStats summarises the whole site for the dashboard header.
func AdminStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		users, err := cfg.Store.Users().Count(ctx, store.UserFilter{})
		if err != nil {
			respondError(c, cfg, err, "could not count users")
			return
		}
		performers, err := cfg.Store.Users().Count(ctx, store.UserFilter{PerformersOnly: true})
		if err != nil {
			respondError(c, cfg, err, "could not count performers")
			return
		}
		events, err := cfg.Store.Events().Count(ctx, store.EventFilter{Window: store.WindowAll})
		if err != nil {
			respondError(c, cfg, err, "could not count events")
			return
		}
		upcoming, err := cfg.Store.Events().Count(ctx, store.EventFilter{Window: store.WindowUpcoming, Now: cfg.Now()})
		if err != nil {
			respondError(c, cfg, err, "could not count events")
			return
		}
		bookings, err := cfg.Store.Bookings().ListAll(ctx)
		if err != nil {
			respondError(c, cfg, err, "could not fetch bookings")
			return
		}
		stats := services.ComputeStats(bookings)

		c.JSON(http.StatusOK, gin.H{
			"users":          users,
			"performers":     performers,
			"events":         events,
			"upcomingEvents": upcoming,
			"bookings": gin.H{
				"total":    stats.TotalBookings,
				"pending":  stats.Pending,
				"verified": stats.Verified,
				"rejected": stats.Rejected,
			},
			"verifiedRevenue": stats.VerifiedRevenue,
		})
	}
}

// AdminFeed upgrades to a websocket carrying booking lifecycle events. Browsers
// cannot set headers on websocket requests, so the token arrives as ?token=.
func AdminFeed(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := middleware.ParseToken(cfg, raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(middleware.UserIDKey, claims.UserID)

		ctx, cancel := opContext(c)
		user, err := middleware.LoadUser(ctx, cfg, c)
		cancel()
		if err != nil {
			respondError(c, cfg, err, "could not load account")
			return
		}
		if !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		if err := cfg.Hub.Serve(c.Writer, c.Request, user.ID.Hex()); err != nil {
			cfg.Logger.Warn("websocket upgrade", zap.Error(err))
		}
	}
}
