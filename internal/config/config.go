package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	AuthJWTSecret    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Storage   StorageConfig
	RateLimit RateLimitConfig
}

// StorageConfig controls where uploaded media is written.
type StorageConfig struct {
	Root             string `env:"STORAGE_ROOT"               envDefault:"uploads"`
	UploadPolicyPath string `env:"STORAGE_UPLOAD_POLICY_PATH" envDefault:"."`
}

// RateLimitConfig controls the Redis-backed limiter for invites and uploads.
type RateLimitConfig struct {
	Enabled       bool          `env:"RATE_LIMIT_ENABLED"        envDefault:"false"`
	RedisAddr     string        `env:"RATE_LIMIT_REDIS_ADDR"`
	RedisPassword string        `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RedisDB       int           `env:"RATE_LIMIT_REDIS_DB"       envDefault:"0"`
	InviteRate    float64       `env:"RATE_LIMIT_INVITE_RATE"    envDefault:"0.2"`
	InviteBurst   int           `env:"RATE_LIMIT_INVITE_BURST"   envDefault:"10"`
	UploadRate    float64       `env:"RATE_LIMIT_UPLOAD_RATE"    envDefault:"0.05"`
	UploadBurst   int           `env:"RATE_LIMIT_UPLOAD_BURST"   envDefault:"5"`
	InviteLockTTL time.Duration `env:"RATE_LIMIT_INVITE_LOCK_TTL" envDefault:"5s"`
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "pitchdeck"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":3000"),
		AuthCookieSecure:  authCookieSecure,
		AuthJWTSecret:     strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", ""),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pitchdeck"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "pitchdeck.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	if err := env.Parse(&cfg.Storage); err != nil {
		log.Printf("[config] storage: %v", err)
		cfg.Storage = StorageConfig{Root: "uploads", UploadPolicyPath: "."}
	}
	if err := env.Parse(&cfg.RateLimit); err != nil {
		log.Printf("[config] rate limit disabled: %v", err)
		cfg.RateLimit = RateLimitConfig{}
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
