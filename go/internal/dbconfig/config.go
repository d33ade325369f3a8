package dbconfig

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns   int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "ansar_quiz"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),

		MaxOpenConns:   getEnvAsInt("DB_POOL_MAX", 20),
		IdleTimeout:    time.Duration(getEnvAsInt("DB_IDLE_TIMEOUT_MS", 30000)) * time.Millisecond,
		ConnectTimeout: time.Duration(getEnvAsInt("DB_CONNECTION_TIMEOUT_MS", 5000)) * time.Millisecond,
		MaxRetries:     getEnvAsInt("DB_MAX_RETRIES", 5),
		RetryDelay:     time.Duration(getEnvAsInt("DB_RETRY_DELAY_MS", 2000)) * time.Millisecond,
	}
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
	if c.ConnectTimeout > 0 {
		dsn += fmt.Sprintf("&connect_timeout=%d", int(c.ConnectTimeout.Seconds()+0.5))
	}
	return dsn
}

// Open opens the pool and pings it, retrying up to MaxRetries times.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("retry_delay", cfg.RetryDelay).
				Msg("database not ready, retrying")
			select {
			case <-ctx.Done():
				db.Close()
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.pingTimeout())
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			log.Info().
				Str("host", cfg.Host).
				Int("port", cfg.Port).
				Str("database", cfg.Database).
				Msg("connected to database")
			return db, nil
		}
	}

	db.Close()
	return nil, fmt.Errorf("ping database after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

func (c Config) pingTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return 5 * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
