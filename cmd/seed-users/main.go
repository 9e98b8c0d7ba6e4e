package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/TangmaeTT/MathEveryday/internal/config"
	"github.com/TangmaeTT/MathEveryday/internal/database"
)

type seedUser struct {
	Username    string
	DisplayName string
	AllTimeHigh int
	Streak      int
}

var demoUsers = []seedUser{
	{Username: "alice", DisplayName: "Alice", AllTimeHigh: 42, Streak: 7},
	{Username: "bob", DisplayName: "Bob", AllTimeHigh: 35, Streak: 3},
	{Username: "carol", DisplayName: "Carol", AllTimeHigh: 35, Streak: 1},
	{Username: "dave", DisplayName: "Dave", AllTimeHigh: 12, Streak: 0},
}

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

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "mathpass123"
		log.Printf("WARNING: Using default seed password. Set SEED_PASSWORD env var for anything shared!")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	for _, u := range demoUsers {
		if err := upsertUser(db, u, string(hash)); err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Username, err)
		}
		log.Printf("✓ Seeded user %s (high=%d, streak=%d)", u.Username, u.AllTimeHigh, u.Streak)
	}

	log.Printf("Seeded %d demo users, password: %s", len(demoUsers), password)
}

func upsertUser(db *sqlx.DB, u seedUser, passwordHash string) error {
	_, err := db.Exec(`
		INSERT INTO users (id, username, display_name, password_hash, all_time_high, streak)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    all_time_high = EXCLUDED.all_time_high,
		    streak = EXCLUDED.streak`,
		newUserID(), u.Username, u.DisplayName, passwordHash, u.AllTimeHigh, u.Streak)
	return err
}

func newUserID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to generate user ID: %v", err)
	}
	return "user_" + hex.EncodeToString(b)
}
