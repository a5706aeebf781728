package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
)

const DefaultRoundsPerMatch = 5

// ErrMissingHost is returned by Validate when MP_URL is empty.
var ErrMissingHost = errors.New("MP_URL is not set")

// Config is the network location and identity of one client.
type Config struct {
	// Dev selects ws:// and http:// instead of wss:// and https://.
	Dev            bool
	Host           string
	PlayerID       string
	AuthSession    string
	RoundsPerMatch int
	DatabaseURL    string
	LogLevel       string
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads the configuration without validating it. A .env file in the
// working directory has already been loaded by godotenv.
func FromEnv() (Config, error) {
	cfg := Config{
		Host:           strings.TrimSpace(os.Getenv("MP_URL")),
		PlayerID:       os.Getenv("MP_PLAYER_ID"),
		AuthSession:    os.Getenv("MP_AUTH_SESSION"),
		RoundsPerMatch: DefaultRoundsPerMatch,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}

	if v := os.Getenv("MP_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse MP_DEV: %w", err)
		}
		cfg.Dev = dev
	}

	if v := os.Getenv("MP_ROUNDS_PER_MATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse MP_ROUNDS_PER_MATCH: %w", err)
		}
		cfg.RoundsPerMatch = n
	}

	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.New().String()
	}
	return cfg, nil
}

// Validate checks the fields Dial depends on.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if strings.Contains(c.Host, "://") {
		return fmt.Errorf("MP_URL must be a host without scheme, got %q", c.Host)
	}
	if c.RoundsPerMatch <= 0 {
		return fmt.Errorf("MP_ROUNDS_PER_MATCH must be positive, got %d", c.RoundsPerMatch)
	}
	return nil
}

// WSURL is the socket endpoint, e.g. wss://host.
func (c Config) WSURL() string {
	if c.Dev {
		return "ws://" + c.Host
	}
	return "wss://" + c.Host
}

// HTTPURL is the REST base for the same host.
func (c Config) HTTPURL() string {
	if c.Dev {
		return "http://" + c.Host
	}
	return "https://" + c.Host
}
