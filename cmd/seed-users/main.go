package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/config"
	"github.com/euras-play/backend/internal/database"
	"github.com/euras-play/backend/internal/redis"
	"github.com/euras-play/backend/internal/store"
)

// Seeds a pair of demo accounts with fresh login keys and a starting balance,
// printing the keys once. Useful for exercising matchmaking locally.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required to seed users")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	st, err := store.NewPostgresStore(db, rdb)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	users := accounts.NewService(st)

	balance := 100.0
	if raw := os.Getenv("SEED_BALANCE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			balance = v
		}
	}

	ctx := context.Background()
	for _, username := range []string{"DemoAlpha", "DemoBravo"} {
		profileKey := accounts.GenerateProfileKey()
		securityKey := accounts.GenerateSecurityKey()

		user := accounts.User{
			ID:         "demo_" + accounts.NormalizeKey(username),
			Username:   username,
			ProfileKey: profileKey,
			Balance:    balance,
		}
		if _, err := users.Register(ctx, user, securityKey); err != nil {
			log.Fatalf("Failed to seed user %s: %v", username, err)
		}

		log.Printf("✓ Seeded %s (balance %.2f)", username, balance)
		log.Printf("  Profile Key:  %s", profileKey)
		log.Printf("  Security Key: %s", securityKey)
	}
}
