package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/TangmaeTT/MathEveryday/internal/api"
	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/database"
	"github.com/TangmaeTT/MathEveryday/internal/game"
	"github.com/TangmaeTT/MathEveryday/internal/migrations"
	"github.com/TangmaeTT/MathEveryday/internal/redis"
	"github.com/TangmaeTT/MathEveryday/internal/stats"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Streak day boundaries follow the players' calendar, not UTC
	loc, err := time.LoadLocation(cfg.StreakTimezone)
	if err != nil {
		log.Fatalf("Invalid STREAK_TIMEZONE %q: %v", cfg.StreakTimezone, err)
	}

	// Wire stats persistence and the session manager
	userStore := stats.NewUserStore(db, rdb)
	reconciler := stats.NewReconciler(userStore, loc)
	manager := game.NewManager(
		cfg.SessionDurationSeconds,
		time.Duration(cfg.SessionRetentionMinutes)*time.Minute,
		reconciler,
	)
	manager.StartSweeper(context.Background())

	// Rebuild the Redis leaderboard mirror from Postgres so reads are
	// warm even after a Redis flush
	if err := userStore.RebuildLeaderboardMirror(context.Background()); err != nil {
		log.Printf("[LEADERBOARD] Mirror rebuild failed (Postgres fallback stays active): %v", err)
	}

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, rdb, cfg, manager)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting MathEveryday server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
