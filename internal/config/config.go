package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	AppURL      string

	DatabaseURL string
	RedisURL    string

	JWTSecret          string
	JWTExpiresIn       time.Duration
	JWTCookieExpiresIn time.Duration

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool

	RateLimitMax    int
	RateLimitWindow time.Duration
	BodyLimit       string
	MaxPageLimit    int

	PublicDir      string
	WorkerInterval time.Duration
}

// Load reads configuration from .env (when present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AppURL:      getEnv("APP_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTExpiresIn:       getDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
		JWTCookieExpiresIn: time.Duration(getInt("JWT_COOKIE_EXPIRES_IN_DAYS", 90)) * 24 * time.Hour,

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  getEnv("SMTP_PORT", "587"),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: getEnv("EMAIL_FROM", "Natours <hello@natours.io>"),

		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransIsProduction: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",

		RateLimitMax:    getInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Hour),
		BodyLimit:       getEnv("BODY_LIMIT", "10K"),
		MaxPageLimit:    getInt("MAX_PAGE_LIMIT", 500),

		PublicDir:      getEnv("PUBLIC_DIR", "public"),
		WorkerInterval: getDuration("WORKER_INTERVAL", time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// IsProduction reports whether error details must be hidden from clients
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Lvl maps LOG_LEVEL onto the gommon log levels
func (c *Config) Lvl() log.Lvl {
	switch c.LogLevel {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("%s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return n
}

// getDuration accepts Go durations ("90m", "24h")
func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("%s=%q is not a duration, using %s", key, value, fallback)
		return fallback
	}
	return d
}
