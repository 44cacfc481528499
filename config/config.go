package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the API server reads from the environment.
type Config struct {
	Port string

	DBDriver   string // "postgres" or "mysql"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBDSN      string // overrides the fields above when set

	JWTSecret string

	AllowedOrigins  string
	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration

	TaxRate  decimal.Decimal
	LogLevel log.Level
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:           envString("PORT", "8080"),
		DBDriver:       strings.ToLower(envString("DB_DRIVER", "postgres")),
		DBHost:         envString("DB_HOST", "db"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBDSN:          os.Getenv("DB_DSN"),
		AllowedOrigins: envString("ALLOWED_ORIGINS", "*"),
		RateLimitMax:   envInt("RATE_LIMIT_MAX", 60),
	}
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second

	// Fiber default BodyLimit is 4 MB; BODY_LIMIT_BYTES wins over BODY_LIMIT_MB.
	cfg.BodyLimitBytes = envInt("BODY_LIMIT_BYTES", 0)
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	switch cfg.DBDriver {
	case "postgres":
		cfg.DBPort = envString("DB_PORT", "5432")
	case "mysql":
		cfg.DBPort = envString("DB_PORT", "3306")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
	cfg.JWTSecret = os.Getenv("JWT_SECRET_KEY")
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}

	rate, err := envDecimal("TAX_RATE", "0.10")
	if err != nil {
		return nil, err
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("TAX_RATE must not be negative, got %s", rate)
	}
	cfg.TaxRate = rate

	level, err := ParseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

// ParseLogLevel maps a level name to a Fiber log level.
func ParseLogLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", name)
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDecimal(key, def string) (decimal.Decimal, error) {
	raw := envString(key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
