package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3030 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.AuthCodeTTL != 60*time.Second || cfg.AccessTokenTTL != time.Hour || cfg.RefreshTokenTTL != 24*time.Hour {
		t.Fatalf("unexpected ttls: %+v", cfg)
	}
	if cfg.SessionSecret != "test" {
		t.Fatalf("unexpected session secret: %q", cfg.SessionSecret)
	}
	if cfg.InitialGuestBalance != "100000" {
		t.Fatalf("unexpected initial balance: %q", cfg.InitialGuestBalance)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("SUPPORTED_LANGUAGES", "en-US,th-TH")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8081 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.AccessTokenTTL)
	}
	if len(cfg.SupportedLanguages) != 2 || cfg.SupportedLanguages[1] != "th-TH" {
		t.Fatalf("unexpected languages: %v", cfg.SupportedLanguages)
	}
}

func TestClientsDefaultTrio(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	clients := cfg.Clients()
	if len(clients) != 1 {
		t.Fatalf("expected one bootstrap client, got %d", len(clients))
	}
	c := clients[0]
	if c.ID != "1" || c.Secret != "1" {
		t.Fatalf("unexpected default client: %+v", c)
	}
	if len(c.RedirectURIs) != 2 {
		t.Fatalf("unexpected redirect uris: %v", c.RedirectURIs)
	}
}

func TestClientsNamedTrio(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", "LOBBY,KIOSK")
	t.Setenv("OAUTH_LOBBY_CLIENT_ID", "lobby-id")
	t.Setenv("OAUTH_LOBBY_CLIENT_SECRET", "lobby-secret")
	t.Setenv("OAUTH_LOBBY_REDIRECT_URLS", "https://lobby.example,https://lobby.example/alt")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	clients := cfg.Clients()
	if len(clients) != 2 {
		t.Fatalf("expected two clients, got %d", len(clients))
	}
	if clients[0].ID != "lobby-id" || clients[0].Secret != "lobby-secret" || len(clients[0].RedirectURIs) != 2 {
		t.Fatalf("unexpected lobby client: %+v", clients[0])
	}
	// KIOSK has no env trio and falls back to the default.
	if clients[1].ID != "1" || clients[1].Secret != "1" {
		t.Fatalf("unexpected kiosk fallback: %+v", clients[1])
	}
}
