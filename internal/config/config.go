// Package config loads the process configuration from environment
// variables. Values mirror the deployment surface of the wallet platform:
// client bootstrap list, token lifetimes, session cookie settings and the
// optional Postgres DSN.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment-derived configuration.
type Config struct {
	Port       int `env:"PORT" envDefault:"3030"`
	TrustProxy int `env:"TRUST_PROXY" envDefault:"0"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"test"`
	SecureSession bool   `env:"SECURE_SESSION" envDefault:"false"`

	AuthCodeTTL     time.Duration `env:"AUTH_CODE_TTL" envDefault:"60s"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	GuestUserTTL    time.Duration `env:"GUEST_USER_TTL" envDefault:"24h"`

	PasswordHashCost    int      `env:"PASSWORD_HASH_COST" envDefault:"10"`
	InitialGuestBalance string   `env:"INITIAL_BALANCE" envDefault:"100000"`
	SupportedLanguages  []string `env:"SUPPORTED_LANGUAGES" envDefault:"en-US"`

	DefaultClientID string   `env:"OAUTH_DEFAULT_CLIENT_ID" envDefault:"1"`
	ClientNames     []string `env:"OAUTH_CLIENT_ID" envDefault:"DEFAULT"`

	PGDSN string `env:"PG_DSN"`

	RateBurst  int `env:"RATE_BURST" envDefault:"50"`
	RatePerSec int `env:"RATE_PER_SEC" envDefault:"25"`
}

// BootstrapClient describes a client registered at startup.
type BootstrapClient struct {
	ID           string
	Secret       string
	RedirectURIs []string
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Clients resolves the bootstrap client list. Each name in OAUTH_CLIENT_ID
// selects a trio of OAUTH_<NAME>_CLIENT_ID / _CLIENT_SECRET /
// _REDIRECT_URLS variables, falling back to the historical "1"/"1"
// localhost client when unset.
func (c Config) Clients() []BootstrapClient {
	clients := make([]BootstrapClient, 0, len(c.ClientNames))
	for _, name := range c.ClientNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		clients = append(clients, BootstrapClient{
			ID:           envOr("OAUTH_"+name+"_CLIENT_ID", "1"),
			Secret:       envOr("OAUTH_"+name+"_CLIENT_SECRET", "1"),
			RedirectURIs: strings.Split(envOr("OAUTH_"+name+"_REDIRECT_URLS", "http://localhost,https://localhost"), ","),
		})
	}
	return clients
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
