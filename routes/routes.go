package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/voiceofrajkot/vor-api/config"
	controllers "github.com/voiceofrajkot/vor-api/controllers"
	metrics "github.com/voiceofrajkot/vor-api/metrics"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())
	if !cfg.CloudinaryEnabled() {
		r.Static("/uploads", cfg.UploadDir)
	}

	auth := middleware.AuthMiddleware(cfg)
	admin := middleware.RequireAdmin(cfg)
	performer := middleware.RequirePerformer(cfg)
	limiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute).Limit()

	api := r.Group("/api")

	// Auth and users
	users := api.Group("/auth")
	{
		users.POST("/register", limiter, controllers.Register(cfg))
		users.POST("/login", limiter, controllers.Login(cfg))
		users.GET("/profile", auth, controllers.GetProfile(cfg))
		users.PUT("/profile", auth, controllers.UpdateProfile(cfg))
		users.GET("/performers", controllers.ListPerformers(cfg))
		users.GET("/users", auth, admin, controllers.ListUsers(cfg))
		users.GET("/users/:id", controllers.GetUser(cfg))
	}

	// Events
	events := api.Group("/events")
	{
		events.GET("", controllers.ListEvents(cfg))
		events.GET("/:id", controllers.GetEvent(cfg))
		events.GET("/performer/:id", controllers.ListPerformerEvents(cfg))
		events.GET("/:id/payment-qr", auth, controllers.PaymentQR(cfg))
		events.POST("", auth, admin, controllers.CreateEvent(cfg))
		events.PUT("/:id", auth, admin, controllers.UpdateEvent(cfg))
		events.DELETE("/:id", auth, admin, controllers.DeleteEvent(cfg))
	}

	bookings := api.Group("/bookings")
	bookings.Use(auth)
	{
		bookings.POST("", controllers.CreateBooking(cfg))
		bookings.GET("/user", controllers.GetUserBookings(cfg))
		bookings.POST("/check-in", admin, controllers.CheckInTicket(cfg))
		bookings.GET("/event/:id", admin, controllers.GetEventBookings(cfg))
		bookings.GET("/:id", controllers.GetBooking(cfg))
		bookings.GET("/:id/ticket", controllers.DownloadTicket(cfg))
		bookings.POST("/:id/upload-payment", controllers.UploadPayment(cfg))
		bookings.POST("/:id/verify", admin, controllers.VerifyBooking(cfg))
		bookings.POST("/:id/reject", admin, controllers.RejectBooking(cfg))
	}

	posts := api.Group("/posts")
	{
		posts.GET("", controllers.ListPosts(cfg))
		posts.GET("/:id", controllers.GetPost(cfg))
		posts.GET("/author/:id", controllers.ListAuthorPosts(cfg))
		posts.POST("", auth, performer, controllers.CreatePost(cfg))
		posts.PUT("/:id/like", auth, controllers.ToggleLike(cfg))
		posts.DELETE("/:id", auth, controllers.DeletePost(cfg))
	}

	dashboard := api.Group("/admin")
	{
		dashboard.GET("/stats", auth, admin, controllers.AdminStats(cfg))
		dashboard.GET("/ws", controllers.AdminFeed(cfg))
	}
}
