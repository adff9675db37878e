package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	RedisURL  string `env:"REDIS_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Comma-separated origin allow-list for the WebSocket handshake.
	// "*" allows all origins.
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:"*"`

	MaxClients int `env:"MAX_CLIENTS" default:"1000"`

	allowedOrigins []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if cfg.MaxClients < 1 {
		return fmt.Errorf("MAX_CLIENTS must be positive, got %d", cfg.MaxClients)
	}

	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.allowedOrigins = append(cfg.allowedOrigins, origin)
		}
	}
	if len(cfg.allowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must name at least one origin")
	}

	return nil
}

// AllowsOrigin reports whether the given Origin header value is allow-listed.
func (c *Config) AllowsOrigin(origin string) bool {
	for _, allowed := range c.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
