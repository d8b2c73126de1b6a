package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	InstanceID    string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	BroadcastMode string
	CORSOrigins   []string

	MediaAPIKey    string
	MediaAPISecret string
	MediaTokenTTL  time.Duration

	CallRingTimeout   time.Duration
	RateLimitMessages int
	RateLimitCalls    int
}

var (
	BroadcastRedis = "redis"
	BroadcastLocal = "local"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:           getEnv("APP_PORT", "8080"),
		AppMode:           getEnv("APP_MODE", "debug"),
		LogMode:           getEnv("LOG_MODE", "development"),
		InstanceID:        getEnv("INSTANCE_ID", defaultInstanceID()),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "pulse_chat"),
		DBPort:            getEnv("DB_PORT", "5432"),
		JWTSecret:         getEnv("JWT_SECRET", "change-me"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		BroadcastMode:     getEnv("BROADCAST_MODE", BroadcastRedis),
		CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"*"}),
		MediaAPIKey:       getEnv("MEDIA_API_KEY", ""),
		MediaAPISecret:    getEnv("MEDIA_API_SECRET", ""),
		MediaTokenTTL:     time.Duration(getEnvAsInt("MEDIA_TOKEN_TTL_MIN", 60)) * time.Minute,
		CallRingTimeout:   time.Duration(getEnvAsInt("CALL_RING_TIMEOUT_SEC", 45)) * time.Second,
		RateLimitMessages: getEnvAsInt("RATE_LIMIT_MESSAGES", 60),
		RateLimitCalls:    getEnvAsInt("RATE_LIMIT_CALLS", 10),
	}
}

// Validate rejects settings that would make a release deployment unsafe.
func (c *Config) Validate() error {
	if c.BroadcastMode != BroadcastRedis && c.BroadcastMode != BroadcastLocal {
		return errors.New("BROADCAST_MODE must be redis or local")
	}
	if c.AppMode == "release" && (c.JWTSecret == "" || c.JWTSecret == "change-me") {
		return errors.New("JWT_SECRET must be set in release mode")
	}
	if c.CallRingTimeout <= 0 {
		return errors.New("CALL_RING_TIMEOUT_SEC must be positive")
	}
	return nil
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
