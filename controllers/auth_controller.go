package controllers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	cache "github.com/voiceofrajkot/vor-api/cache"
	config "github.com/voiceofrajkot/vor-api/config"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	models "github.com/voiceofrajkot/vor-api/models"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
	utils "github.com/voiceofrajkot/vor-api/utils"
)

const minPasswordLength = 6

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func issueToken(c *gin.Context, cfg *config.Config, status int, u *models.User) {
	token, err := middleware.GenerateToken(cfg, u)
	if err != nil {
		cfg.Logger.Error("sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(status, authResponse{Token: token, User: u})
}

// ---------------- REGISTER ----------------
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name            string   `json:"name" binding:"required"`
			Email           string   `json:"email" binding:"required"`
			Password        string   `json:"password" binding:"required"`
			MobileNumber    string   `json:"mobileNumber" binding:"required"`
			IsPerformer     bool     `json:"isPerformer"`
			ProfileTags     []string `json:"profileTags"`
			OneLineDesc     string   `json:"oneLineDesc"`
			WorkDescription string   `json:"workDescription"`
			SamplePoetry    string   `json:"samplePoetry"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required", "field": "name"})
			return
		}
		email, err := services.ValidateEmail(input.Email)
		if err != nil {
			respondError(c, cfg, err, "")
			return
		}
		mobile, err := services.NormalizeMobile(input.MobileNumber)
		if err != nil {
			respondError(c, cfg, err, "")
			return
		}
		if utf8.RuneCountInString(input.Password) < minPasswordLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters", "field": "password"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			cfg.Logger.Error("hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
			return
		}

		now := cfg.Now()
		user := &models.User{
			ID:              primitive.NewObjectID(),
			Name:            name,
			Email:           email,
			PasswordHash:    string(hash),
			MobileNumber:    mobile,
			IsPerformer:     input.IsPerformer,
			ProfileTags:     services.NormalizeTags(input.ProfileTags),
			OneLineDesc:     strings.TrimSpace(input.OneLineDesc),
			WorkDescription: strings.TrimSpace(input.WorkDescription),
			SamplePoetry:    strings.TrimSpace(input.SamplePoetry),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		ctx, cancel := opContext(c)
		defer cancel()

		if err := cfg.Store.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
				return
			}
			respondError(c, cfg, err, "could not register")
			return
		}
		if user.IsPerformer {
			invalidate(c, cfg, cache.GroupPerformers)
		}

		issueToken(c, cfg, http.StatusCreated, user)
	}
}

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		user, err := cfg.Store.Users().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if err != nil {
			respondError(c, cfg, err, "could not log in")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		issueToken(c, cfg, http.StatusOK, user)
	}
}

// ---------------- PROFILE ----------------
func GetProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		user, err := middleware.LoadUser(ctx, cfg, c)
		if err != nil {
			respondError(c, cfg, err, "could not load profile")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfile accepts JSON or multipart form data. A profilePhoto file, when sent,
// is downscaled and uploaded; the previous photo is removed best-effort.
func UpdateProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name            *string  `json:"name" form:"name"`
			MobileNumber    *string  `json:"mobileNumber" form:"mobileNumber"`
			IsPerformer     *bool    `json:"isPerformer" form:"isPerformer"`
			ProfileTags     []string `json:"profileTags" form:"profileTags"`
			OneLineDesc     *string  `json:"oneLineDesc" form:"oneLineDesc"`
			WorkDescription *string  `json:"workDescription" form:"workDescription"`
			SamplePoetry    *string  `json:"samplePoetry" form:"samplePoetry"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		user, err := middleware.LoadUser(ctx, cfg, c)
		if err != nil {
			respondError(c, cfg, err, "could not load profile")
			return
		}
		wasPerformer := user.IsPerformer

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty", "field": "name"})
				return
			}
			user.Name = name
		}
		if input.MobileNumber != nil {
			mobile, err := services.NormalizeMobile(*input.MobileNumber)
			if err != nil {
				respondError(c, cfg, err, "")
				return
			}
			user.MobileNumber = mobile
		}
		if input.IsPerformer != nil {
			user.IsPerformer = *input.IsPerformer
		}
		if input.ProfileTags != nil {
			user.ProfileTags = services.NormalizeTags(input.ProfileTags)
		}
		if input.OneLineDesc != nil {
			user.OneLineDesc = strings.TrimSpace(*input.OneLineDesc)
		}
		if input.WorkDescription != nil {
			user.WorkDescription = strings.TrimSpace(*input.WorkDescription)
		}
		if input.SamplePoetry != nil {
			user.SamplePoetry = strings.TrimSpace(*input.SamplePoetry)
		}

		oldPhoto, newPhoto := "", ""
		if fh, err := c.FormFile("profilePhoto"); err == nil {
			img, err := services.ReadImage(fh)
			if err != nil {
				respondError(c, cfg, err, "could not read photo")
				return
			}
			resized, err := utils.FitImage(img.Data, 800)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "photo could not be processed", "field": "profilePhoto"})
				return
			}
			url, err := cfg.Uploader.Upload(ctx, bytes.NewReader(resized), utils.FolderProfiles, "profile.jpg")
			if err != nil {
				cfg.Logger.Error("upload profile photo", zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed", "details": err.Error()})
				return
			}
			oldPhoto, newPhoto, user.ProfilePhoto = user.ProfilePhoto, url, url
		}

		user.UpdatedAt = cfg.Now()
		if err := cfg.Store.Users().Save(ctx, user); err != nil {
			discardUpload(ctx, cfg, newPhoto)
			respondError(c, cfg, err, "could not update profile")
			return
		}
		if oldPhoto != "" {
			if err := cfg.Uploader.Delete(ctx, oldPhoto); err != nil {
				cfg.Logger.Warn("delete old profile photo", zap.Error(err), zap.String("url", oldPhoto))
			}
		}
		if wasPerformer || user.IsPerformer {
			invalidate(c, cfg, cache.GroupPerformers)
		}

		issueToken(c, cfg, http.StatusOK, user)
	}
}

// ---------------- USERS ----------------
func GetUser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "user")
		if !ok {
			return
		}
		ctx, cancel := opContext(c)
		defer cancel()

		user, err := cfg.Store.Users().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not load user")
			return
		}
		c.JSON(http.StatusOK, user.Public())
	}
}

func ListPerformers(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		var performers []models.User
		if hit, err := cache.GetJSON(ctx, cfg.Cache, cache.GroupPerformers, "all", &performers); err != nil {
			cfg.Logger.Warn("performers cache read", zap.Error(err))
		} else if hit {
			c.JSON(http.StatusOK, performers)
			return
		}

		users, err := cfg.Store.Users().List(ctx, store.UserFilter{PerformersOnly: true})
		if err != nil {
			respondError(c, cfg, err, "could not fetch performers")
			return
		}
		performers = make([]models.User, len(users))
		for i, u := range users {
			performers[i] = u.Public()
		}

		if err := cache.SetJSON(ctx, cfg.Cache, cache.GroupPerformers, "all", performers); err != nil {
			cfg.Logger.Warn("performers cache write", zap.Error(err))
		}
		c.JSON(http.StatusOK, performers)
	}
}

func ListUsers(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := opContext(c)
		defer cancel()

		users, err := cfg.Store.Users().List(ctx, store.UserFilter{
			PerformersOnly: c.Query("performers") == "true",
		})
		if err != nil {
			respondError(c, cfg, err, "could not fetch users")
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func invalidate(c *gin.Context, cfg *config.Config, group string) {
	if err := cfg.Cache.Invalidate(c.Request.Context(), group); err != nil {
		cfg.Logger.Warn("cache invalidate", zap.String("group", group), zap.Error(err))
	}
}
