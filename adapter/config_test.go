package adapter

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Host: "nas.local"}
	cfg.ApplyDefaults()

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v", cfg.RetryDelay)
	}
	if cfg.AuthType != AuthNone {
		t.Errorf("AuthType = %q", cfg.AuthType)
	}
	if cfg.APIKeyHeader != "X-Api-Key" {
		t.Errorf("APIKeyHeader = %q", cfg.APIKeyHeader)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"api_key without key", func(c *Config) { c.AuthType = AuthAPIKey }, true},
		{"api_key with key", func(c *Config) { c.AuthType = AuthAPIKey; c.APIKey = "k" }, false},
		{"token without token", func(c *Config) { c.AuthType = AuthToken }, true},
		{"basic without password", func(c *Config) { c.AuthType = AuthBasic; c.Username = "u" }, true},
		{"basic complete", func(c *Config) { c.AuthType = AuthBasic; c.Username = "u"; c.Password = "p" }, false},
		{"certificate without files", func(c *Config) { c.AuthType = AuthCertificate }, true},
		{"bogus auth type", func(c *Config) { c.AuthType = "macaroon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Host: "nas.local", Port: 8080}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"http with port", Config{Host: "nas.local", Port: 7878}, "http://nas.local:7878"},
		{"https", Config{Host: "pve.local", Port: 8006, UseSSL: true}, "https://pve.local:8006"},
		{"no port", Config{Host: "nas.local"}, "http://nas.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_AuthHeaders(t *testing.T) {
	apiKey := Config{AuthType: AuthAPIKey, APIKey: "secret", APIKeyHeader: "X-Api-Key"}
	if got := apiKey.AuthHeaders()["X-Api-Key"]; got != "secret" {
		t.Errorf("api key header = %q", got)
	}

	token := Config{AuthType: AuthToken, Token: "tok"}
	if got := token.AuthHeaders()["Authorization"]; got != "Bearer tok" {
		t.Errorf("token header = %q", got)
	}

	if h := (Config{AuthType: AuthBasic}).AuthHeaders(); h != nil {
		t.Errorf("basic contributes headers %v, want none", h)
	}
}
