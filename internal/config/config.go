// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// PlaceholderAuthToken is the shipped default for API_AUTH_TOKEN. It must be
// overridden before the service is exposed.
const PlaceholderAuthToken = "CHANGE_ME"

// Config holds all application configuration.
type Config struct {
	APIID          int
	APIHash        string
	Session        string // TG_SESSION; empty on the first run
	WebhookURL     string // empty disables forwarding
	WebhookTimeout time.Duration
	AuthToken      string
	Host           string
	Port           string
	SessionDBPath  string // optional SQLite file holding the session credential
	CORSOrigins    []string
	LogLevel       slog.Level
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIID:          getEnvInt("TG_API_ID", 0),
		APIHash:        getEnv("TG_API_HASH", ""),
		Session:        strings.TrimSpace(getEnv("TG_SESSION", "")),
		WebhookURL:     strings.TrimSpace(getEnv("N8N_WEBHOOK_URL", "")),
		WebhookTimeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		AuthToken:      getEnv("API_AUTH_TOKEN", PlaceholderAuthToken),
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8000"),
		SessionDBPath:  getEnv("SESSION_DB_PATH", ""),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.APIID <= 0 {
		return fmt.Errorf("TG_API_ID must be a positive integer")
	}
	if c.APIHash == "" {
		return fmt.Errorf("TG_API_HASH cannot be empty")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("API_AUTH_TOKEN cannot be empty")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %q", c.Port)
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be > 0")
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("N8N_WEBHOOK_URL must be an absolute http(s) URL")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ForwardingEnabled reports whether inbound messages are posted to a webhook.
func (c *Config) ForwardingEnabled() bool {
	return c.WebhookURL != ""
}

// AuthTokenIsPlaceholder returns true if API_AUTH_TOKEN was left at its default.
func (c *Config) AuthTokenIsPlaceholder() bool {
	return c.AuthToken == PlaceholderAuthToken
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
