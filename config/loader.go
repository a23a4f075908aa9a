package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path instead of searching.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path instead of searching.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load reads the daemon configuration. Sources in increasing precedence:
// defaults, config.yml, .env file, process environment. The result is
// defaulted and validated.
func Load(opts ...LoaderOption) (*Config, error) {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.configFile == "" {
		o.configFile = findFirst(
			"./config.yml",
			"./config/config.yml",
			"/etc/homied/config.yml",
		)
	}
	if o.envFile == "" {
		o.envFile = findFirst(".env", "config/.env")
	}

	v := viper.New()

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", o.configFile, err)
		}
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", o.envFile, err)
		}
	}

	// HOMIE_SERVER_PORT overrides server.port, and so on.
	v.SetEnvPrefix("HOMIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvKeys pre-binds every known key so AutomaticEnv sees variables even
// when the config file never mentions the section.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.shutdown_timeout_ms",
		"docker.socket_path",
		"adapters.sweep_interval_ms", "adapters.max_idle_ms", "adapters.discovery_timeout_ms",
		"resilience.max_retries", "resilience.base_delay_ms", "resilience.max_delay_ms",
		"resilience.multiplier", "resilience.failure_threshold", "resilience.reset_timeout_ms",
		"resilience.success_threshold", "resilience.requests_per_second", "resilience.burst_limit",
		"log.level", "log.format", "log.output", "log.no_color", "log.timestamp", "log.caller",
	} {
		_ = v.BindEnv(key)
	}
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
