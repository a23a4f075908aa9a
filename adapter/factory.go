package adapter

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/logger"
)

// Builder constructs a service adapter from a configuration.
type Builder func(cfg Config, opts ...Option) (ServiceAdapter, error)

// ValidationResult is the outcome of a pre-flight configuration check.
// Errors make the config unusable; warnings and suggestions are advisory.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// conventionalPorts are the ports each service family ships with. A config
// pointing elsewhere is legal but worth flagging.
var conventionalPorts = map[string]int{
	TypeRadarr:  7878,
	TypeSonarr:  8989,
	TypeSABnzbd: 8080,
	TypeProxmox: 8006,
	TypeDocker:  2375,
}

type cachedAdapter struct {
	adapter  ServiceAdapter
	lastUsed time.Time
}

// Factory builds and caches service adapters. Instances are shared by
// service type and base URL, so two requests against the same Radarr reuse
// one adapter with its connection state and HTTP pool.
type Factory struct {
	mu       sync.Mutex
	builders map[string]Builder
	cache    map[string]*cachedAdapter
	opts     []Option
	log      *logger.Logger
}

// NewFactory creates a factory pre-registered with the built-in service
// types. The given options are applied to every adapter it builds.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		builders: make(map[string]Builder),
		cache:    make(map[string]*cachedAdapter),
		opts:     opts,
		log:      logger.Get("adapter.factory"),
	}
	f.Register(TypeRadarr, func(cfg Config, o ...Option) (ServiceAdapter, error) { return NewRadarr(cfg, o...) })
	f.Register(TypeSonarr, func(cfg Config, o ...Option) (ServiceAdapter, error) { return NewSonarr(cfg, o...) })
	f.Register(TypeSABnzbd, func(cfg Config, o ...Option) (ServiceAdapter, error) { return NewSABnzbd(cfg, o...) })
	f.Register(TypeProxmox, func(cfg Config, o ...Option) (ServiceAdapter, error) { return NewProxmox(cfg, o...) })
	f.Register(TypeDocker, func(cfg Config, o ...Option) (ServiceAdapter, error) { return NewDocker(cfg, o...) })
	return f
}

// Register adds or replaces a builder for a service type.
func (f *Factory) Register(serviceType string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[serviceType] = builder
}

// Types returns the registered service types, sorted.
func (f *Factory) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.builders))
	for t := range f.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Get returns the cached adapter for the service type and base URL, building
// one on first use.
func (f *Factory) Get(serviceType string, cfg Config) (ServiceAdapter, error) {
	key := cacheKey(serviceType, &cfg)

	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.cache[key]; ok {
		entry.lastUsed = time.Now()
		return entry.adapter, nil
	}

	builder, ok := f.builders[serviceType]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("unknown service type %q", serviceType))
	}

	a, err := builder(cfg, f.opts...)
	if err != nil {
		return nil, err
	}
	f.cache[key] = &cachedAdapter{adapter: a, lastUsed: time.Now()}
	f.log.Debug("adapter created", map[string]interface{}{
		logger.FieldServiceType: serviceType,
		logger.FieldEndpoint:    cfg.BaseURL(),
	})
	return a, nil
}

// Remove evicts one adapter from the cache and disconnects it.
func (f *Factory) Remove(serviceType string, cfg Config) {
	key := cacheKey(serviceType, &cfg)
	f.mu.Lock()
	entry, ok := f.cache[key]
	delete(f.cache, key)
	f.mu.Unlock()
	if ok {
		entry.adapter.Disconnect()
	}
}

// CleanupIdle evicts adapters unused for longer than maxIdle and returns
// how many were removed. Meant to run on a timer from the host process.
func (f *Factory) CleanupIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var evicted []ServiceAdapter

	f.mu.Lock()
	for key, entry := range f.cache {
		if entry.lastUsed.Before(cutoff) {
			evicted = append(evicted, entry.adapter)
			delete(f.cache, key)
		}
	}
	f.mu.Unlock()

	for _, a := range evicted {
		a.Disconnect()
	}
	if len(evicted) > 0 {
		f.log.Info("idle adapters evicted", map[string]interface{}{"count": len(evicted)})
	}
	return len(evicted)
}

// Size returns the number of cached adapters.
func (f *Factory) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// ValidateConfig checks a configuration against a service type without
// building an adapter or touching the network.
func (f *Factory) ValidateConfig(serviceType string, cfg Config) ValidationResult {
	res := ValidationResult{Valid: true}

	f.mu.Lock()
	_, known := f.builders[serviceType]
	f.mu.Unlock()
	if !known {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("unknown service type %q", serviceType))
		return res
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		res.Valid = false
		res.Errors = append(res.Errors, err.Error())
	}

	switch serviceType {
	case TypeRadarr, TypeSonarr, TypeSABnzbd:
		if cfg.APIKey == "" {
			res.Valid = false
			res.Errors = append(res.Errors, serviceType+" requires an API key")
		}
	case TypeProxmox:
		if cfg.Token == "" && (cfg.Username == "" || cfg.Password == "") {
			res.Valid = false
			res.Errors = append(res.Errors, "proxmox requires an API token or username and password")
		}
		if !cfg.UseSSL {
			res.Warnings = append(res.Warnings, "proxmox serves HTTPS only; useSsl will be forced on")
		}
	case TypeDocker:
		if !cfg.UseSSL {
			res.Warnings = append(res.Warnings, "docker engine API over plain TCP is unauthenticated; restrict it to a trusted network")
		}
	}

	if want, ok := conventionalPorts[serviceType]; ok && cfg.Port != 0 && cfg.Port != want {
		res.Warnings = append(res.Warnings, fmt.Sprintf("port %d is unusual for %s", cfg.Port, serviceType))
		res.Suggestions = append(res.Suggestions, fmt.Sprintf("%s conventionally listens on %d", serviceType, want))
	}
	if cfg.SkipTLSVerify && cfg.UseSSL {
		res.Warnings = append(res.Warnings, "TLS verification is disabled")
	}

	return res
}

func cacheKey(serviceType string, cfg *Config) string {
	return serviceType + "|" + cfg.BaseURL()
}
