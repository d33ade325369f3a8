package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	BroadcastOutbox = "outbox"
	BroadcastDirect = "direct"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config is the process-wide configuration shared by every binary.
type Config struct {
	Port      int
	LogLevel  zerolog.Level
	JWTSecret string
	NATSURL   string
	RabbitURL string

	Redis RedisConfig
	Game  GameConfig `yaml:"game"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is disabled.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GameConfig holds the tunables that may come from the YAML overlay.
type GameConfig struct {
	CountdownFrom           int           `yaml:"countdown_from"`
	CountdownInterval       time.Duration `yaml:"countdown_interval"`
	DefaultQuestionDuration time.Duration `yaml:"default_question_duration"`
	RosterTTL               time.Duration `yaml:"roster_ttl"`
	QuestionBankTTL         time.Duration `yaml:"question_bank_ttl"`
	QueueTTL                time.Duration `yaml:"queue_ttl"`
	SessionTTL              time.Duration `yaml:"session_ttl"`
	BroadcastMode           string        `yaml:"broadcast_mode"`
	StoreDriver             string        `yaml:"store_driver"`
}

// DefaultGameConfig returns the built-in tunables.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		CountdownFrom:           3,
		CountdownInterval:       time.Second,
		DefaultQuestionDuration: 30 * time.Second,
		RosterTTL:               30 * time.Second,
		QuestionBankTTL:         300 * time.Second,
		QueueTTL:                10 * time.Second,
		SessionTTL:              10 * time.Second,
		BroadcastMode:           BroadcastOutbox,
		StoreDriver:             StoreDriverPostgres,
	}
}

// Load reads .env, then the environment, then the optional QUIZ_CONFIG yaml file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:      getEnvAsInt("PORT", 8080),
		LogLevel:  level,
		JWTSecret: os.Getenv("JWT_SECRET"),
		NATSURL:   getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		RabbitURL: os.Getenv("RABBITMQ_URL"),
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Game: DefaultGameConfig(),
	}

	if ttl := getEnvAsDuration("CACHE_TTL", 0); ttl > 0 {
		cfg.Game.RosterTTL = ttl
	}
	if mode := os.Getenv("BROADCAST_MODE"); mode != "" {
		cfg.Game.BroadcastMode = mode
	}
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Game.StoreDriver = driver
	}

	if path := os.Getenv("QUIZ_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Game.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file struct {
		Game GameConfig `yaml:"game"`
	}
	file.Game = c.Game
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	c.Game = file.Game
	return nil
}

// Validate rejects tunables the game cannot run with.
func (g GameConfig) Validate() error {
	if g.CountdownFrom < 0 {
		return fmt.Errorf("countdown_from must be >= 0, got %d", g.CountdownFrom)
	}
	if g.CountdownInterval <= 0 {
		return fmt.Errorf("countdown_interval must be positive")
	}
	switch g.BroadcastMode {
	case BroadcastOutbox, BroadcastDirect:
	default:
		return fmt.Errorf("unknown broadcast_mode %q", g.BroadcastMode)
	}
	switch g.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store_driver %q", g.StoreDriver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or bare seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
