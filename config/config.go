// Package config loads and validates the daemon configuration from a YAML
// file, a .env file, and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/TOoSmOotH/homie-sub000/logger"
	"github.com/TOoSmOotH/homie-sub000/resilience"
)

// Config is the daemon's full configuration tree.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Adapters   AdaptersConfig   `mapstructure:"adapters"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Log        logger.Config    `mapstructure:"log"`
}

// ServerConfig configures the HTTP edge.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ShutdownTimeoutMs bounds graceful shutdown.
	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms"`
}

// DockerConfig configures the engine control-socket transport.
type DockerConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// AdaptersConfig configures the adapter factory.
type AdaptersConfig struct {
	// SweepIntervalMs is how often idle adapters are swept. Zero disables
	// the sweep.
	SweepIntervalMs int `mapstructure:"sweep_interval_ms"`
	// MaxIdleMs is how long an adapter may sit unused before eviction.
	MaxIdleMs int `mapstructure:"max_idle_ms"`
	// DiscoveryTimeoutMs bounds each discovery probe.
	DiscoveryTimeoutMs int `mapstructure:"discovery_timeout_ms"`
}

// ResilienceConfig carries the default retry, breaker, and limiter policies.
type ResilienceConfig struct {
	MaxRetries  int     `mapstructure:"max_retries"`
	BaseDelayMs int     `mapstructure:"base_delay_ms"`
	MaxDelayMs  int     `mapstructure:"max_delay_ms"`
	Multiplier  float64 `mapstructure:"multiplier"`

	FailureThreshold int `mapstructure:"failure_threshold"`
	ResetTimeoutMs   int `mapstructure:"reset_timeout_ms"`
	SuccessThreshold int `mapstructure:"success_threshold"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstLimit        int     `mapstructure:"burst_limit"`
}

// ApplyDefaults fills in zero-value fields across the tree.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8096
	}
	if c.Server.ShutdownTimeoutMs == 0 {
		c.Server.ShutdownTimeoutMs = 10000
	}
	if c.Docker.SocketPath == "" {
		c.Docker.SocketPath = "/var/run/docker.sock"
	}
	if c.Adapters.SweepIntervalMs == 0 {
		c.Adapters.SweepIntervalMs = 60000
	}
	if c.Adapters.MaxIdleMs == 0 {
		c.Adapters.MaxIdleMs = 600000
	}
	if c.Adapters.DiscoveryTimeoutMs == 0 {
		c.Adapters.DiscoveryTimeoutMs = 5000
	}

	r := &c.Resilience
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.BaseDelayMs == 0 {
		r.BaseDelayMs = 1000
	}
	if r.MaxDelayMs == 0 {
		r.MaxDelayMs = 30000
	}
	if r.Multiplier == 0 {
		r.Multiplier = 2.0
	}
	if r.FailureThreshold == 0 {
		r.FailureThreshold = 5
	}
	if r.ResetTimeoutMs == 0 {
		r.ResetTimeoutMs = 30000
	}
	if r.SuccessThreshold == 0 {
		r.SuccessThreshold = 2
	}
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = 10.0
	}
	if r.BurstLimit == 0 {
		r.BurstLimit = 20
	}

	c.Log.ApplyDefaults()
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Resilience.Multiplier < 1 {
		return fmt.Errorf("config: resilience multiplier must be >= 1, got %v", c.Resilience.Multiplier)
	}
	if c.Resilience.BaseDelayMs > c.Resilience.MaxDelayMs {
		return fmt.Errorf("config: base delay exceeds max delay")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns the server listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// SweepInterval returns the idle sweep period.
func (c *AdaptersConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// MaxIdle returns the idle eviction threshold.
func (c *AdaptersConfig) MaxIdle() time.Duration {
	return time.Duration(c.MaxIdleMs) * time.Millisecond
}

// DiscoveryTimeout returns the per-probe bound.
func (c *AdaptersConfig) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutMs) * time.Millisecond
}

// ManagerConfig maps the resilience section onto the manager's policy set.
func (c *ResilienceConfig) ManagerConfig() resilience.ManagerConfig {
	return resilience.ManagerConfig{
		Retry: resilience.RetryConfig{
			MaxRetries: c.MaxRetries,
			BaseDelay:  time.Duration(c.BaseDelayMs) * time.Millisecond,
			MaxDelay:   time.Duration(c.MaxDelayMs) * time.Millisecond,
			Multiplier: c.Multiplier,
			RetryIf:    resilience.RetryEligible,
		},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: c.FailureThreshold,
			ResetTimeout:     time.Duration(c.ResetTimeoutMs) * time.Millisecond,
			SuccessThreshold: c.SuccessThreshold,
		},
		RateLimiter: resilience.RateLimiterConfig{
			RequestsPerSecond: c.RequestsPerSecond,
			BurstLimit:        c.BurstLimit,
		},
	}
}
