// Command seed creates the first admin account and a few sample events.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	models "github.com/voiceofrajkot/vor-api/models"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

func main() {
	_ = godotenv.Load()

	logger, err := utils.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	email, password := os.Getenv("SEED_ADMIN_EMAIL"), os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || len(password) < 6 {
		logger.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD (6+ characters) are required")
	}

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "voice_of_rajkot"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.NewMongo(ctx, uri, dbName)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer db.Close(context.Background())

	if err := Seed(ctx, db, email, password, time.Now()); err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
	logger.Info("seed complete", zap.String("admin", email))
}

// Seed is idempotent: an existing admin is left alone and events are only added
// to an empty catalogue.
func Seed(ctx context.Context, db store.Store, email, password string, now time.Time) error {
	admin, err := db.Users().FindByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin = &models.User{
			ID:           primitive.NewObjectID(),
			Name:         "Admin",
			Email:        email,
			PasswordHash: string(hash),
			IsAdmin:      true,
			ProfileTags:  []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := db.Users().Create(ctx, admin); err != nil {
			return err
		}
	case err != nil:
		return err
	case !admin.IsAdmin:
		admin.IsAdmin = true
		admin.UpdatedAt = now
		if err := db.Users().Save(ctx, admin); err != nil {
			return err
		}
	}

	count, err := db.Events().Count(ctx, store.EventFilter{Window: store.WindowAll})
	if err != nil || count > 0 {
		return err
	}

	samples := []models.Event{
		{Name: "Open Mic Night", Description: "Poetry, shayari and stories from Rajkot's own voices.", Venue: "Hemu Gadhvi Hall", TotalSeats: 120, Price: 199},
		{Name: "Ghazal Evening", Description: "An evening of ghazals and nazms.", Venue: "Pramukh Swami Auditorium", TotalSeats: 250, Price: 349},
		{Name: "Storytelling Circle", Description: "Small-room storytelling with tea.", Venue: "Race Course Garden Amphitheatre", TotalSeats: 40, Price: 0},
	}
	for i := range samples {
		e := samples[i]
		e.ID = primitive.NewObjectID()
		e.DateTime = now.AddDate(0, 0, 14*(i+1)).Truncate(24 * time.Hour).Add(13*time.Hour + 30*time.Minute)
		e.Performers = []primitive.ObjectID{}
		e.CreatedBy = admin.ID
		e.CreatedAt, e.UpdatedAt = now, now
		if err := db.Events().Create(ctx, &e); err != nil {
			return err
		}
	}
	return nil
}
