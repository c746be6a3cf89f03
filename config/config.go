package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voiceofrajkot/vor-api/cache"
	"github.com/voiceofrajkot/vor-api/realtime"
	"github.com/voiceofrajkot/vor-api/store"
	"github.com/voiceofrajkot/vor-api/utils"
)

// Config carries the environment settings and the dependencies every handler needs.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	MongoURI       string
	DBName         string
	StorageDriver  string
	JWTSecret      []byte
	JWTTTL         time.Duration
	AllowedOrigins []string
	PublicBaseURL  string
	UploadDir      string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	ZeptoAPIURL string
	ZeptoAPIKey string
	EmailFrom   string

	UPIID        string
	UPIPayeeName string
	TicketSecret string
	Location     *time.Location

	TicketFontPath     string
	TicketFontBoldPath string

	RedisURL          string
	CacheTTL          time.Duration
	AuthRatePerMinute int

	// Wired in main.
	Store    store.Store
	Uploader utils.Uploader
	Mailer   utils.Mailer
	Cache    cache.Cache
	Hub      *realtime.Hub
	Tickets  *utils.TicketRenderer
	Logger   *zap.Logger
	Now      func() time.Time
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	jwtTTL, err := time.ParseDuration(getenv("JWT_TTL", "72h"))
	if err != nil {
		return nil, fmt.Errorf("JWT_TTL: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getenv("CACHE_TTL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}
	rate, err := strconv.Atoi(getenv("AUTH_RATE_PER_MINUTE", "10"))
	if err != nil || rate < 1 {
		return nil, fmt.Errorf("AUTH_RATE_PER_MINUTE must be a positive integer")
	}
	loc, err := time.LoadLocation(getenv("TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}

	port := getenv("PORT", "8080")

	cfg := &Config{
		Port:           port,
		GinMode:        getenv("GIN_MODE", "release"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:         getenv("DB_NAME", "voice_of_rajkot"),
		StorageDriver:  getenv("STORAGE_DRIVER", "mongo"),
		JWTSecret:      []byte(secret),
		JWTTTL:         jwtTTL,
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "*")),
		PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		ZeptoAPIURL: os.Getenv("ZEPTO_API_URL"),
		ZeptoAPIKey: os.Getenv("ZEPTO_API_KEY"),
		EmailFrom:   os.Getenv("EMAIL_FROM"),

		UPIID:        os.Getenv("UPI_ID"),
		UPIPayeeName: getenv("UPI_PAYEE_NAME", "Voice of Rajkot"),
		TicketSecret: getenv("TICKET_SECRET", secret),
		Location:     loc,

		TicketFontPath:     os.Getenv("TICKET_FONT_PATH"),
		TicketFontBoldPath: os.Getenv("TICKET_FONT_BOLD_PATH"),

		RedisURL:          os.Getenv("REDIS_URL"),
		CacheTTL:          cacheTTL,
		AuthRatePerMinute: rate,

		Now: time.Now,
	}

	if cfg.StorageDriver != "mongo" && cfg.StorageDriver != "memory" {
		return nil, fmt.Errorf("STORAGE_DRIVER must be mongo or memory, got %q", cfg.StorageDriver)
	}
	return cfg, nil
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) MailEnabled() bool {
	return c.ZeptoAPIURL != "" && c.ZeptoAPIKey != "" && c.EmailFrom != ""
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
