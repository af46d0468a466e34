package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Queue.Driver)
	assert.Equal(t, 3, cfg.Booking.ModificationWindowDays)
	assert.Equal(t, 3*time.Second, cfg.Booking.SideEffectTimeout)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.Same(t, cfg, AppConfig)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("QUEUE_DRIVER", "AMQP")
	t.Setenv("BOOKING_MODIFICATION_WINDOW_DAYS", "5")
	t.Setenv("SERVER_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "amqp", cfg.Queue.Driver)
	assert.Equal(t, 5, cfg.Booking.ModificationWindowDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestLoadTestConfig(t *testing.T) {
	cfg := LoadTestConfig()

	assert.Equal(t, "5433", cfg.Database.Port)
	assert.Equal(t, "test_db", cfg.Database.DBName)
	assert.Equal(t, "6380", cfg.Redis.Port)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("UnknownQueueDriver", func(t *testing.T) {
		cfg := LoadTestConfig()
		cfg.Queue.Driver = "kafka"
		assert.Error(t, cfg.Validate())
	})

	t.Run("DefaultSecretInProduction", func(t *testing.T) {
		cfg := LoadTestConfig()
		cfg.App.Environment = "production"
		cfg.JWT.Secret = "change-me"
		assert.Error(t, cfg.Validate())
	})

	t.Run("NegativeWindow", func(t *testing.T) {
		cfg := LoadTestConfig()
		cfg.Booking.ModificationWindowDays = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestDSN(t *testing.T) {
	cfg := LoadTestConfig()
	assert.Equal(t,
		"host=localhost port=5433 user=postgres password=postgres dbname=test_db sslmode=disable timezone=UTC",
		cfg.Database.DSN())
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
}
