package dbconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "quiz")
	t.Setenv("DB_POOL_MAX", "7")
	t.Setenv("DB_RETRY_DELAY_MS", "250")
	t.Setenv("DB_MAX_RETRIES", "not-a-number")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "quiz", cfg.Database)
	assert.Equal(t, 7, cfg.MaxOpenConns)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestDSN(t *testing.T) {
	cfg := Config{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		Database: "quiz", SSLMode: "disable", ConnectTimeout: 3 * time.Second,
	}

	assert.Equal(t, "postgres://u:p@localhost:5432/quiz?sslmode=disable&connect_timeout=3", cfg.DSN())

	cfg.ConnectTimeout = 0
	assert.Equal(t, "postgres://u:p@localhost:5432/quiz?sslmode=disable", cfg.DSN())
}
