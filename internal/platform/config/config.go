package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" default:"development"`
	Port           string `env:"PORT" default:"8080"`
	AppURL         string `env:"APP_URL" default:"http://localhost:8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`

	ProbeInterval  time.Duration `env:"PROBE_INTERVAL" default:"10s"`
	ProbeThreshold int           `env:"PROBE_THRESHOLD" default:"2"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" default:"5s"`
	SendBufferSize int           `env:"SEND_BUFFER_SIZE" default:"16"`
	StatsInterval  time.Duration `env:"STATS_INTERVAL" default:"1m"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
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

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// PongDeadline is how long the transport waits for any inbound frame before
// dropping the socket. It outlasts the probe schedule, so a silent client is
// always evicted by the liveness monitor first.
func (c *Config) PongDeadline() time.Duration {
	return c.ProbeInterval * time.Duration(c.ProbeThreshold+2)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	switch cfg.AppEnv {
	case "development", "production", "test":
	default:
		return fmt.Errorf("APP_ENV must be development, production or test, got %q", cfg.AppEnv)
	}

	if u, err := url.Parse(cfg.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
	}

	if cfg.ProbeInterval <= 0 {
		return errors.New("PROBE_INTERVAL must be positive")
	}
	if cfg.ProbeThreshold < 1 {
		return errors.New("PROBE_THRESHOLD must be at least 1")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("WRITE_TIMEOUT must be positive")
	}
	if cfg.SendBufferSize < 1 {
		return errors.New("SEND_BUFFER_SIZE must be at least 1")
	}

	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.ConnectionRate <= 0 {
		return errors.New("CONNECTION_RATE must be positive")
	}
	if cfg.ConnectionBurst < 1 {
		return errors.New("CONNECTION_BURST must be at least 1")
	}

	if cfg.APIRateLimit <= 0 {
		return errors.New("API_RATE_LIMIT must be positive")
	}
	if cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_BURST must be at least 1")
	}

	return nil
}
