// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Log  Log
	HTTP HTTPServer

	Stripe  Stripe  `envPrefix:"STRIPE_"`
	Pix     Pix     `envPrefix:"PIX_"`
	Webhook Webhook `envPrefix:"WEBHOOK_"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"pixbridge"`
}

// Stripe configures the billing provider client.
type Stripe struct {
	SecretKey string `env:"SECRET_KEY,required,notEmpty"`
	PriceID   string `env:"PRICE_ID"`
}

// Pix configures the PIX QR-code provider client.
type Pix struct {
	APIKey  string `env:"API_KEY,required,notEmpty"`
	BaseURL string `env:"API_URL"`
}

// Webhook configures the inbound webhook endpoint.
type Webhook struct {
	Secret string `env:"SECRET,required,notEmpty"`
}

// Log configures structured logging.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// HTTPServer configures the listen address.
type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// Addr returns the host:port listen address.
func (s HTTPServer) Addr() string {
	return s.Host + ":" + s.Port
}

// Load reads a .env file when present and parses the environment. Missing
// required variables fail the load.
func Load() (*Config, error) {
	// A missing .env file is fine in production.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
