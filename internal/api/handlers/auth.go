package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// Register creates a new user account and issues a JWT
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Password    string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		username := normalizeUsername(req.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
			return
		}
		if len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}
		displayName := strings.TrimSpace(req.DisplayName)
		if displayName == "" {
			displayName = username
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash password: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		userID := generateUserID()
		_, err = db.Exec(
			`INSERT INTO users (id, username, display_name, password_hash, created_at) VALUES ($1, $2, $3, $4, NOW())`,
			userID, username, displayName, string(hash))
		if err != nil {
			// Unique violation on username is the common case here.
			if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
				return
			}
			log.Printf("Failed to create user %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		token, err := issueToken(cfg, userID)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[AUTH] Registered user %s (%s)", username, userID)
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  gin.H{"id": userID, "username": username, "display_name": displayName},
		})
	}
}

// Login verifies credentials and issues a JWT
func Login(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}
		username := normalizeUsername(req.Username)
		if username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		ctx := c.Request.Context()
		// Rate limit per username
		if rdb != nil && cfg.LoginRateLimitSecs > 0 {
			key := fmt.Sprintf("login_rate:%s", username)
			ok, err := rdb.SetNX(ctx, key, "1", time.Duration(cfg.LoginRateLimitSecs)*time.Second).Result()
			if err == nil && !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
				return
			}
		}

		var user models.User
		err := db.GetContext(ctx, &user,
			`SELECT id, username, display_name, password_hash, created_at, all_time_high, streak, last_play_date
			 FROM users WHERE username=$1`, username)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("Failed to load user %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":            user.ID,
				"username":      user.Username,
				"display_name":  user.DisplayName,
				"all_time_high": user.AllTimeHigh,
				"streak":        user.Streak,
			},
		})
	}
}

// AuthMiddleware validates bearer JWT and sets user_id in context
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// GetMe returns the authenticated user's profile and stats
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var user models.User
		err := db.Get(&user,
			`SELECT id, username, display_name, created_at, all_time_high, streak, last_play_date
			 FROM users WHERE id=$1`, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user not found"})
			return
		}

		profile := gin.H{
			"id":            user.ID,
			"username":      user.Username,
			"display_name":  user.DisplayName,
			"all_time_high": user.AllTimeHigh,
			"streak":        user.Streak,
		}
		if user.LastPlayDate.Valid {
			profile["last_play_date"] = user.LastPlayDate.Time.Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, profile)
	}
}

// UpdateDisplayName changes the authenticated user's display name
func UpdateDisplayName(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authedUserID(c)
		var req struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.DisplayName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}

		if _, err := db.Exec(`UPDATE users SET display_name=$1 WHERE id=$2`,
			strings.TrimSpace(req.DisplayName), userID); err != nil {
			log.Printf("Failed to update display name for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"display_name": strings.TrimSpace(req.DisplayName)})
	}
}

// issueToken signs an HS256 JWT carrying the user id
func issueToken(cfg *config.Config, userID string) (string, error) {
	exp := time.Now().Add(time.Duration(cfg.TokenTTLHours) * time.Hour)
	claims := jwt.MapClaims{"user_id": userID, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
