// Package config loads runtime configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSurreal  = "surrealdb"
	defaultUserID = "local-user"
)

// Config holds all configuration values.
type Config struct {
	// HTTP
	Addr            string
	CORSOrigins     []string
	ChatMaxDuration time.Duration

	// Storage backend: "memory" or "surrealdb"
	Store string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Model providers
	ModelCatalog    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaHost      string
	AWSRegion       string

	// Chat
	MaxSteps       int
	ActiveTools    string
	WeatherBaseURL string

	// Auth. An empty secret attributes every request to DevUserID.
	AuthSecret   string
	AuthTokenTTL time.Duration
	DevUserID    string

	// Rate limiting, enabled when RedisURL is set
	RedisURL       string
	ChatRateLimit  int
	ChatRateWindow time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Client
	ServerURL string
	Token     string
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:            getEnv("CHATBLOCKS_ADDR", ":3000"),
		CORSOrigins:     splitList(getEnv("CHATBLOCKS_CORS_ORIGINS", "*")),
		ChatMaxDuration: getDuration("CHAT_MAX_DURATION", 60*time.Second),

		Store: getEnv("CHATBLOCKS_STORE", StoreMemory),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "chatblocks"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "chat"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ModelCatalog:    getEnv("CHATBLOCKS_MODELS", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:       getEnv("AWS_REGION", ""),

		MaxSteps:       getInt("CHAT_MAX_STEPS", 5),
		ActiveTools:    getEnv("CHAT_TOOLS", "all"),
		WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"),

		AuthSecret:   getEnv("AUTH_SECRET", ""),
		AuthTokenTTL: getDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		DevUserID:    getEnv("AUTH_DEV_USER", defaultUserID),

		RedisURL:       getEnv("REDIS_URL", ""),
		ChatRateLimit:  getInt("CHAT_RATE_LIMIT", 30),
		ChatRateWindow: getDuration("CHAT_RATE_WINDOW", time.Minute),

		LogFile:  getEnv("CHATBLOCKS_LOG_FILE", "/tmp/chatblocks.log"),
		LogLevel: parseLogLevel(getEnv("CHATBLOCKS_LOG_LEVEL", "INFO")),

		ServerURL: getEnv("CHATBLOCKS_URL", "http://localhost:3000"),
		Token:     getEnv("CHATBLOCKS_TOKEN", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
