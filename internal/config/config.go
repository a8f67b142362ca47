package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// BotWorkers sizes the in-process queue worker pool.
	BotWorkers int
	// RedisURL selects the durable queue backend; empty means in-process.
	RedisURL string

	// SearchIndexURL enables the external full-text index; empty means the
	// database fallback scan only.
	SearchIndexURL string
	SearchIndexKey string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "default-super-secret-key") // CHANGE THIS IN PRODUCTION!
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	tokenExpHours := getEnvInt("JWT_EXPIRATION_HOURS", 24)
	openAITimeoutSecs := getEnvInt("OPENAI_TIMEOUT_SECONDS", 30)
	botWorkers := getEnvInt("BOT_WORKERS", 4)

	cfg := &Config{
		HTTPPort:        port,
		JWTSecret:       jwtSecret,
		DatabaseURL:     dbURL,
		TokenExpiration: time.Hour * time.Duration(tokenExpHours),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAITimeout:   time.Second * time.Duration(openAITimeoutSecs),
		BotWorkers:      botWorkers,
		RedisURL:        getEnv("REDIS_URL", ""),
		SearchIndexURL:  getEnv("SEARCH_INDEX_URL", ""),
		SearchIndexKey:  getEnv("SEARCH_INDEX_KEY", ""),
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, BotWorkers=%d", cfg.HTTPPort, cfg.TokenExpiration, cfg.BotWorkers)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Env variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return value
}
