package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Matchmaking
	MatchStalenessSeconds int
	MatchScanLimit        int
	QueueJanitorEnabled   bool
	QueueJanitorPollSecs  int
	QueueRetentionSeconds int

	// Wagers
	HouseEdgePercentage int
	MinWager            float64

	// Payout service
	PayoutServiceURL string
	PayoutAuthSecret string

	// Security
	JWTSecret         string
	AdminToken        string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database (empty = in-memory store, dev only)
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Matchmaking
		MatchStalenessSeconds: getEnvInt("MATCH_STALENESS_SECONDS", 90),
		MatchScanLimit:        getEnvInt("MATCH_SCAN_LIMIT", 10),
		QueueJanitorEnabled:   getEnv("QUEUE_JANITOR_ENABLED", "true") == "true",
		QueueJanitorPollSecs:  getEnvInt("QUEUE_JANITOR_POLL_SECONDS", 300),
		QueueRetentionSeconds: getEnvInt("QUEUE_RETENTION_SECONDS", 900),

		// Wagers
		HouseEdgePercentage: getEnvInt("HOUSE_EDGE_PERCENTAGE", 5),
		MinWager:            getEnvFloat("MIN_WAGER", 0.01),

		// Payout service
		PayoutServiceURL: getEnv("PAYOUT_SERVICE_URL", ""),
		PayoutAuthSecret: getEnv("PAYOUT_AUTH_SECRET", ""),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
}

// MatchStaleness is the queue-entry freshness window as a duration.
func (c *Config) MatchStaleness() time.Duration {
	return time.Duration(c.MatchStalenessSeconds) * time.Second
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
