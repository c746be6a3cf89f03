package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/voiceofrajkot/vor-api/config"
	models "github.com/voiceofrajkot/vor-api/models"
	store "github.com/voiceofrajkot/vor-api/store"
)

// Context keys.
const (
	UserIDKey = "user_id"
	UserKey   = "user"
)

type Claims struct {
	UserID      string `json:"userId"`
	IsAdmin     bool   `json:"isAdmin,omitempty"`
	IsPerformer bool   `json:"isPerformer,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for u valid for cfg.JWTTTL.
func GenerateToken(cfg *config.Config, u *models.User) (string, error) {
	now := cfg.Now()
	claims := Claims{
		UserID:      u.ID.Hex(),
		IsAdmin:     u.IsAdmin,
		IsPerformer: u.IsPerformer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTTTL)),
			Issuer:    "voice-of-rajkot",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.JWTSecret)
}

// ParseToken validates a raw token string (without the Bearer prefix).
func ParseToken(cfg *config.Config, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return cfg.JWTSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("unauthorized: invalid token")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller's id under UserIDKey.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := ParseToken(cfg, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// LoadUser fetches the authenticated user record, so role checks see changes made
// after the token was issued.
func LoadUser(ctx context.Context, cfg *config.Config, c *gin.Context) (*models.User, error) {
	if u, ok := c.Get(UserKey); ok {
		return u.(*models.User), nil
	}
	id, err := primitive.ObjectIDFromHex(c.GetString(UserIDKey))
	if err != nil {
		return nil, store.ErrNotFound
	}
	u, err := cfg.Store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Set(UserKey, u)
	return u, nil
}

func requireRole(cfg *config.Config, allowed func(*models.User) bool, denied string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		u, err := LoadUser(ctx, cfg, c)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not load account"})
			return
		}
		if !allowed(u) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": denied})
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	return requireRole(cfg, func(u *models.User) bool { return u.IsAdmin }, "admin access required")
}

// RequirePerformer must run after AuthMiddleware. Admins pass as well.
func RequirePerformer(cfg *config.Config) gin.HandlerFunc {
	return requireRole(cfg, func(u *models.User) bool { return u.IsPerformer || u.IsAdmin }, "performer access required")
}
