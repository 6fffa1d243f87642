package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendBadger = "badger"
	BackendDgraph = "dgraph"
	BackendNeo4j  = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Graph store
	StoreBackend   string
	BadgerDir      string
	BadgerInMemory bool
	DgraphAddr     string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string
	TxnTimeout     time.Duration

	// Ranking
	DefaultPageSize      int
	MaxPageSize          int
	ScoreWeightViews     float64
	ScoreWeightLikes     float64
	ScoreWeightComments  float64
	ScoreWeightClicks    float64
	HashtagWeightPins    float64
	HashtagWeightPosts   float64
	SimilarUserLimit     int
	CascadeProfileDelete bool

	// Collaborators
	JWTSecret         string
	NotifyTopic       string
	ServedViewWorkers int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		StoreBackend:         getEnv("STORE_BACKEND", BackendBadger),
		BadgerDir:            getEnv("BADGER_DIR", "data/graph"),
		BadgerInMemory:       getEnvBool("BADGER_IN_MEMORY", false),
		DgraphAddr:           getEnv("DGRAPH_ADDR", "localhost:9080"),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		TxnTimeout:           getEnvDuration("TXN_TIMEOUT", 5*time.Second),
		DefaultPageSize:      getEnvInt("DEFAULT_PAGE_SIZE", 5),
		MaxPageSize:          getEnvInt("MAX_PAGE_SIZE", 50),
		ScoreWeightViews:     getEnvFloat("SCORE_WEIGHT_VIEWS", 0.1),
		ScoreWeightLikes:     getEnvFloat("SCORE_WEIGHT_LIKES", 0.1),
		ScoreWeightComments:  getEnvFloat("SCORE_WEIGHT_COMMENTS", 0.1),
		ScoreWeightClicks:    getEnvFloat("SCORE_WEIGHT_CLICKS", 0.1),
		HashtagWeightPins:    getEnvFloat("HASHTAG_WEIGHT_PINS", 0.5),
		HashtagWeightPosts:   getEnvFloat("HASHTAG_WEIGHT_POSTS", 0.5),
		SimilarUserLimit:     getEnvInt("SIMILAR_USER_LIMIT", 30),
		CascadeProfileDelete: getEnvBool("CASCADE_PROFILE_DELETE", false),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		NotifyTopic:          getEnv("NOTIFY_TOPIC", "notifications"),
		ServedViewWorkers:    getEnvInt("SERVED_VIEW_WORKERS", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendBadger:
		if c.BadgerDir == "" && !c.BadgerInMemory {
			return fmt.Errorf("BADGER_DIR is required unless BADGER_IN_MEMORY is set")
		}
	case BackendDgraph:
		if c.DgraphAddr == "" {
			return fmt.Errorf("DGRAPH_ADDR is required")
		}
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}
		if c.Neo4jUser == "" {
			return fmt.Errorf("NEO4J_USER is required")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.TxnTimeout <= 0 {
		return fmt.Errorf("TXN_TIMEOUT must be positive")
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("MAX_PAGE_SIZE must be at least 1")
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE")
	}
	if c.SimilarUserLimit < 1 {
		return fmt.Errorf("SIMILAR_USER_LIMIT must be at least 1")
	}
	// JWT secret is optional for development; requests are then anonymous
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
