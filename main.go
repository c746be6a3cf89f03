package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cache "github.com/voiceofrajkot/vor-api/cache"
	config "github.com/voiceofrajkot/vor-api/config"
	metrics "github.com/voiceofrajkot/vor-api/metrics"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	realtime "github.com/voiceofrajkot/vor-api/realtime"
	routes "github.com/voiceofrajkot/vor-api/routes"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	cfg.Logger = logger

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := wire(ctx, cfg); err != nil {
		cancel()
		logger.Fatal("startup", zap.Error(err))
	}
	cancel()

	go cfg.Hub.Run()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger), metrics.Middleware())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.SecurityHeaders())
	r.MaxMultipartMemory = 8 << 20

	routes.SetupRoutes(r, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received, cleaning up")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg.Hub.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := cfg.Store.Close(ctx); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if rc, ok := cfg.Cache.(*cache.Redis); ok {
		if err := rc.Close(); err != nil {
			logger.Error("redis close", zap.Error(err))
		}
	}
}

// wire picks the backing services for cfg based on what the environment configures.
func wire(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logger

	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		cfg.Store = store.NewMemory()
	default:
		m, err := store.NewMongo(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return err
		}
		cfg.Store = m
	}

	if cfg.CloudinaryEnabled() {
		up, err := utils.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		cfg.Uploader = up
	} else {
		log.Info("cloudinary not configured, storing uploads on disk", zap.String("dir", cfg.UploadDir))
		up, err := utils.NewLocalUploader(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		cfg.Uploader = up
	}

	if cfg.MailEnabled() {
		cfg.Mailer = utils.NewZeptoMailer(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom, "Voice of Rajkot")
	} else {
		log.Info("email not configured, notifications disabled")
		cfg.Mailer = utils.NopMailer{}
	}

	cfg.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			cfg.Cache = rc
		}
	}

	tickets, err := utils.NewTicketRenderer(cfg.TicketFontPath, cfg.TicketFontBoldPath)
	if err != nil {
		return err
	}
	cfg.Tickets = tickets

	cfg.Hub = realtime.NewHub(log)
	return nil
}

func corsConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders: []string{"ETag", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
		cc.AllowCredentials = true
	}
	return cc
}
