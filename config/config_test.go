package config

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TAX_RATE", "")
	t.Setenv("BODY_LIMIT_BYTES", "")
	t.Setenv("BODY_LIMIT_MB", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, 4*1024*1024, cfg.BodyLimitBytes)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "0.1", cfg.TaxRate.String())
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_SECRET", "fallback")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("BODY_LIMIT_MB", "1")
	t.Setenv("BODY_LIMIT_BYTES", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.JWTSecret)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 1024*1024, cfg.BodyLimitBytes)
	assert.Equal(t, "0.2", cfg.TaxRate.String())
	assert.Equal(t, log.LevelDebug, cfg.LogLevel)
}

func Test_Load_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("TAX_RATE", "-0.1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TAX_RATE", "abc")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TAX_RATE", "")
	t.Setenv("DB_DRIVER", "sqlite")
	_, err = Load()
	assert.Error(t, err)
}
