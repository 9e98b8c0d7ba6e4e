package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis
	RedisURL      string
	RedisPoolSize int

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	SessionDurationSeconds  int
	SessionRetentionMinutes int
	LeaderboardLimit        int
	FriendQueryBatchSize    int

	// User's calendar for streak day boundaries (IANA name)
	StreakTimezone string

	// Security
	JWTSecret          string
	TokenTTLHours      int
	LoginRateLimitSecs int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/matheveryday?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 10),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game Settings
		SessionDurationSeconds:  getEnvInt("SESSION_DURATION_SECONDS", 60),
		SessionRetentionMinutes: getEnvInt("SESSION_RETENTION_MINUTES", 10),
		LeaderboardLimit:        getEnvInt("LEADERBOARD_LIMIT", 100),
		FriendQueryBatchSize:    getEnvInt("FRIEND_QUERY_BATCH_SIZE", 10),

		// Streaks
		StreakTimezone: getEnv("STREAK_TIMEZONE", "Asia/Bangkok"),

		// Security
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLHours:      getEnvInt("TOKEN_TTL_HOURS", 24),
		LoginRateLimitSecs: getEnvInt("LOGIN_RATE_LIMIT_SECONDS", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
