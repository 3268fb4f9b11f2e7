package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite3"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"research_chat.db"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	ResearchAPIURL       string  `env:"RESEARCH_API_URL"`
	ResearchAPIKey       string  `env:"RESEARCH_API_KEY"`
	ResearchMaxSources   int     `env:"RESEARCH_MAX_SOURCES" envDefault:"3"`
	ResearchMinRelevance float64 `env:"RESEARCH_MIN_RELEVANCE" envDefault:"0.7"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.ResearchMaxSources <= 0 {
		return fmt.Errorf("RESEARCH_MAX_SOURCES must be positive, got %d", c.ResearchMaxSources)
	}
	if c.ResearchMinRelevance < 0 || c.ResearchMinRelevance > 1 {
		return fmt.Errorf("RESEARCH_MIN_RELEVANCE must be within [0,1], got %v", c.ResearchMinRelevance)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
