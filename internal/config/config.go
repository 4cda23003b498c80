package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	Environment    string // ENV: production, development, etc.
	AllowedOrigins []string

	// External classification/embedding provider (OpenAI-compatible API).
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ClassifyModel  string
	EmbeddingModel string

	// Social platform Graph API.
	GraphAPIBaseURL string
	// App secret for webhook payload signature verification.
	WebhookAppSecret string
	// Token echoed back during webhook subscription verification.
	WebhookVerifyToken string

	// Argon2 hash of the admin API token; admin endpoints are disabled when
	// empty.
	AdminTokenHash string

	// Ingestion worker pool.
	WorkerCount int
	QueueSize   int
	MaxAttempts int

	// Default monthly comment-moderation entitlement when an owner has no
	// entitlement document.
	DefaultMonthlyLimit int

	// DryRun swaps the platform executor for a no-op strategy: decisions are
	// made and recorded but no hide/delete/block reaches the platform.
	DryRun bool
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/safereplies")),
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/safereplies?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ClassifyModel:  getEnv("CLASSIFY_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		GraphAPIBaseURL:    getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		WebhookAppSecret:   getEnv("WEBHOOK_APP_SECRET", ""),
		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),

		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		WorkerCount: getEnvInt("WORKER_COUNT", 8),
		QueueSize:   getEnvInt("QUEUE_SIZE", 1024),
		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 3),

		DefaultMonthlyLimit: getEnvInt("DEFAULT_MONTHLY_LIMIT", 2000),

		DryRun: getEnvBool("DRY_RUN", false),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
