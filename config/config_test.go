package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/resilience"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeFile(t, "config.yml", "{}\n")))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8096" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Docker.SocketPath != "/var/run/docker.sock" {
		t.Errorf("socket = %q", cfg.Docker.SocketPath)
	}
	if cfg.Adapters.MaxIdle() != 10*time.Minute {
		t.Errorf("max idle = %v", cfg.Adapters.MaxIdle())
	}
	if cfg.Resilience.MaxRetries != 3 || cfg.Resilience.Multiplier != 2.0 {
		t.Errorf("resilience = %+v", cfg.Resilience)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeFile(t, "config.yml", `
server:
  port: 9000
docker:
  socket_path: /tmp/docker.sock
resilience:
  max_retries: 5
  failure_threshold: 2
log:
  level: debug
  format: json
`)

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Docker.SocketPath != "/tmp/docker.sock" {
		t.Errorf("socket = %q", cfg.Docker.SocketPath)
	}
	if cfg.Resilience.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Resilience.MaxRetries)
	}

	mc := cfg.Resilience.ManagerConfig()
	if mc.CircuitBreaker.FailureThreshold != 2 {
		t.Errorf("breaker threshold = %d", mc.CircuitBreaker.FailureThreshold)
	}
	if mc.Retry.BaseDelay != time.Second {
		t.Errorf("base delay = %v", mc.Retry.BaseDelay)
	}
	if mc.Retry.RetryIf == nil {
		t.Error("retry predicate not wired")
	}
}

func TestManagerConfig_NonRetryableRunsOnce(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeFile(t, "config.yml", "{}\n")))
	if err != nil {
		t.Fatal(err)
	}

	m := resilience.NewManager(cfg.Resilience.ManagerConfig(), nil)

	calls := 0
	execErr := m.ExecuteResilient(context.Background(), "radarr:GET", func() error {
		calls++
		return errors.Validation("rule", "bad input")
	})

	if !errors.Is(execErr, errors.CodeValidation) {
		t.Fatalf("err = %v, want validation error", execErr)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yml", "server:\n  port: 9000\n")
	t.Setenv("HOMIE_SERVER_PORT", "9100")

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, env should win over file", cfg.Server.Port)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 99999\n"},
		{"multiplier below one", "resilience:\n  multiplier: 0.5\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(WithConfigFile(writeFile(t, "config.yml", tt.yaml))); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
