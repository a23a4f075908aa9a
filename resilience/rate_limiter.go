package resilience

import (
	"sync"
	"time"
)

// RateLimiterConfig configures a fixed-window rate limiter. One instance may
// be shared across many operation ids.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for logging.
	Name string
	// RequestsPerSecond is the implied rate above which requests are rejected.
	RequestsPerSecond float64
	// BurstLimit is the hard cap on requests per window regardless of rate.
	BurstLimit int
	// WindowSize is the fixed window length. Defaults to one second.
	WindowSize time.Duration
	// OnLimit is called when a request is rejected.
	OnLimit func(name string)
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:              name,
		RequestsPerSecond: 10.0,
		BurstLimit:        20,
		WindowSize:        time.Second,
	}
}

// RateLimiter implements a fixed-window rate limiter. The window resets when
// WindowSize has elapsed since the window start; within a window a request is
// rejected once the implied rate (count/elapsed scaled to per-second) would
// exceed RequestsPerSecond, and BurstLimit caps the absolute count.
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewRateLimiter creates a new rate limiter with an empty window.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10.0
	}
	if config.BurstLimit <= 0 {
		config.BurstLimit = int(config.RequestsPerSecond) * 2
	}
	if config.WindowSize <= 0 {
		config.WindowSize = time.Second
	}

	return &RateLimiter{
		config:      config,
		windowStart: time.Now(),
	}
}

// Allow records and admits a request if the current window has capacity.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.windowStart) >= rl.config.WindowSize {
		rl.windowStart = now
		rl.count = 0
	}

	if rl.count >= rl.config.BurstLimit {
		rl.reject()
		return false
	}

	if rl.count > 0 {
		elapsedMs := float64(now.Sub(rl.windowStart).Milliseconds())
		if elapsedMs < 1 {
			elapsedMs = 1
		}
		impliedRate := float64(rl.count) / elapsedMs * 1000
		if impliedRate > rl.config.RequestsPerSecond {
			rl.reject()
			return false
		}
	}

	rl.count++
	return true
}

// Execute runs fn if the rate limit allows, returning ErrRateLimited otherwise.
func (rl *RateLimiter) Execute(fn func() error) error {
	if !rl.Allow() {
		return ErrRateLimited
	}
	return fn()
}

// Count returns the number of requests admitted in the current window.
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.count
}

// Reset clears the current window.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.windowStart = time.Now()
	rl.count = 0
}

// reject fires the OnLimit callback. Callers must hold rl.mu.
func (rl *RateLimiter) reject() {
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
}
