package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration for the API server.
type Config struct {
	Port            int           `env:"PORT" envDefault:"5000"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Inference
	HuggingFaceAPIKey string        `env:"HUGGING_FACE_API_KEY"`
	HFAPIKey          string        `env:"HF_API_KEY"` // legacy name
	InferenceURL      string        `env:"HF_INFERENCE_URL" envDefault:"https://api-inference.huggingface.co/models"`
	InferenceTimeout  time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"120s"`
	MaxImageBytes     int64         `env:"MAX_IMAGE_BYTES" envDefault:"20971520"`

	// Storage; in-memory when empty
	DatabaseURL string `env:"DATABASE_URL"`

	// Auth
	JWTSecret  string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AdminToken string `env:"ADMIN_TOKEN"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	WatermarkEnabled bool   `env:"WATERMARK_ENABLED" envDefault:"true"`
	WatermarkText    string `env:"WATERMARK_TEXT" envDefault:"Mithix AI"`
}

// Load reads .env files if present, then parses environment variables into Config.
func Load() (*Config, error) {
	loadEnvFiles()
	return Parse()
}

// Parse parses the current environment without touching .env files.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.HuggingFaceAPIKey = strings.TrimSpace(cfg.HuggingFaceAPIKey)
	cfg.HFAPIKey = strings.TrimSpace(cfg.HFAPIKey)
	cfg.InferenceURL = strings.TrimRight(strings.TrimSpace(cfg.InferenceURL), "/")
	cfg.AdminToken = strings.TrimSpace(cfg.AdminToken)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 20 * 1024 * 1024
	}
	if cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

// APIKey returns the inference credential, preferring HUGGING_FACE_API_KEY.
func (c *Config) APIKey() string {
	if c.HuggingFaceAPIKey != "" {
		return c.HuggingFaceAPIKey
	}
	return c.HFAPIKey
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// UsePostgres reports whether a database is configured.
func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
