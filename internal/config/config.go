package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const maxOffset = 14 * time.Hour

type Config struct {
	// HTTP Server
	Port         int  `env:"PORT" envDefault:"8080"`
	SecureCookie bool `env:"SECURE_COOKIE" envDefault:"false"`

	// Record store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath       string `env:"DB_PATH" envDefault:"accounting.db"`

	// Auth
	AppPassword      string        `env:"APP_PASSWORD"`
	UserID           string        `env:"USER_ID" envDefault:"default_user"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionSecret    string        `env:"SESSION_SECRET"`
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginLockout     time.Duration `env:"LOGIN_LOCKOUT" envDefault:"15m"`

	// Reports
	TZOffset time.Duration `env:"TZ_OFFSET" envDefault:"8h"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"accounting"`

	// Worker
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads a .env file when one exists and then parses the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when environ is nil.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.StoreBackend {
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH cannot be empty when using sqlite backend")
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of [sqlite memory]", c.StoreBackend))
	}

	if c.UserID == "" {
		errors = append(errors, "USER_ID cannot be empty")
	}
	if c.SessionTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		errors = append(errors, fmt.Sprintf("session secret is %d characters: must be at least 32", len(c.SessionSecret)))
	}
	if c.LoginMaxAttempts < 0 {
		errors = append(errors, fmt.Sprintf("invalid login max attempts %d: must not be negative", c.LoginMaxAttempts))
	}
	if c.LoginLockout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid login lockout %v: must be positive", c.LoginLockout))
	}

	if c.TZOffset < -maxOffset || c.TZOffset > maxOffset {
		errors = append(errors, fmt.Sprintf("invalid timezone offset %v: must be within ±14h", c.TZOffset))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be positive", c.SweepInterval))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
