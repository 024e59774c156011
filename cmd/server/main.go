package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/euras-play/backend/internal/api"
	"github.com/euras-play/backend/internal/config"
	"github.com/euras-play/backend/internal/database"
	"github.com/euras-play/backend/internal/match"
	"github.com/euras-play/backend/internal/migrations"
	"github.com/euras-play/backend/internal/payout"
	"github.com/euras-play/backend/internal/redis"
	"github.com/euras-play/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Pick the document store backend. Postgres + Redis in production; the
	// in-memory store when DATABASE_URL is unset (local development).
	var st store.Store
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
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

		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()

		pg, err := store.NewPostgresStore(db, rdb)
		if err != nil {
			log.Fatalf("Failed to initialize document store: %v", err)
		}
		st = pg
	} else {
		log.Println("[STORE] DATABASE_URL not set - using in-memory store (development only)")
		st = store.NewMemoryStore()
	}

	// Initialize payout client (if configured)
	if client := payout.NewClient(cfg); client != nil {
		payout.SetDefault(client)
		log.Printf("[PAYOUT] Payout client initialized (url=%s)", cfg.PayoutServiceURL)
	}

	// Start queue janitor (sweeps abandoned matchmaking entries)
	go match.StartQueueJanitor(context.Background(), st, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, st, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Euras Play server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
