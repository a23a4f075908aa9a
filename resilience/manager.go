package resilience

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/logger"
)

// ManagerConfig carries the default policies applied to operation ids that
// have no explicit override.
type ManagerConfig struct {
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    RateLimiterConfig
}

// DefaultManagerConfig returns the default policy set.
func DefaultManagerConfig() ManagerConfig {
	retry := DefaultRetryConfig()
	retry.RetryIf = RetryEligible
	return ManagerConfig{
		Retry:          retry,
		CircuitBreaker: DefaultCircuitBreakerConfig(""),
		RateLimiter:    DefaultRateLimiterConfig(""),
	}
}

// RetryEligible is the manager's retry predicate: honor the error's
// retryable verdict and never retry a cancelled context.
func RetryEligible(err error) bool {
	return DefaultRetryIf(err) && errors.IsRetryable(err)
}

// Manager keys circuit breakers and rate limiters by an arbitrary operation
// identifier. State is created lazily on first use per id and lives for the
// process lifetime; Reset discards it explicitly. Concurrent calls sharing an
// operation id contend on the same counters, which are lock-guarded per
// primitive, so counting stays consistent under races.
type Manager struct {
	config ManagerConfig
	log    *logger.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	limiters map[string]*RateLimiter
	policies map[string]ManagerConfig
}

// NewManager creates an empty resilience manager.
func NewManager(config ManagerConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Get("resilience")
	}
	return &Manager{
		config:   config,
		log:      log,
		breakers: make(map[string]*CircuitBreaker),
		limiters: make(map[string]*RateLimiter),
		policies: make(map[string]ManagerConfig),
	}
}

// SetPolicy overrides the default policies for one operation id. It must be
// called before the id's state is created to take effect.
func (m *Manager) SetPolicy(operationID string, cfg ManagerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[operationID] = cfg
}

// Breaker returns the circuit breaker for the operation id, creating it on
// first use.
func (m *Manager) Breaker(operationID string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[operationID]; ok {
		return cb
	}

	cfg := m.policyLocked(operationID).CircuitBreaker
	cfg.Name = operationID
	if cfg.OnStateChange == nil {
		log := m.log
		cfg.OnStateChange = func(name string, from, to State) {
			log.Warn("circuit breaker state change", map[string]interface{}{
				logger.FieldOperation: name,
				"from":                from.String(),
				"to":                  to.String(),
			})
		}
	}

	cb := NewCircuitBreaker(cfg)
	m.breakers[operationID] = cb
	return cb
}

// Limiter returns the rate limiter for the operation id, creating it on
// first use.
func (m *Manager) Limiter(operationID string) *RateLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rl, ok := m.limiters[operationID]; ok {
		return rl
	}

	cfg := m.policyLocked(operationID).RateLimiter
	cfg.Name = operationID

	rl := NewRateLimiter(cfg)
	m.limiters[operationID] = rl
	return rl
}

// ExecuteResilient runs fn under the operation's full policy stack: the rate
// limiter inside the circuit breaker inside retry. Retry is outermost, so a
// retried attempt re-enters the breaker and the limiter each time. Breaker
// and limiter rejections surface as classified errors, so an open circuit is
// never retried while a rate-limit rejection may be.
func (m *Manager) ExecuteResilient(ctx context.Context, operationID string, fn func() error) error {
	m.mu.Lock()
	retryCfg := m.policyLocked(operationID).Retry
	m.mu.Unlock()
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = RetryEligible
	}

	cb := m.Breaker(operationID)
	rl := m.Limiter(operationID)

	return RetryFunc(ctx, retryCfg, func() error {
		err := cb.Execute(func() error {
			return rl.Execute(fn)
		})
		switch {
		case stderrors.Is(err, ErrCircuitOpen):
			return errors.CircuitOpen(operationID).WithCause(err)
		case stderrors.Is(err, ErrRateLimited):
			return errors.RateLimited(operationID).WithCause(err)
		}
		return err
	})
}

// ExecuteResilientFor is the generic variant of Manager.ExecuteResilient for
// operations that produce a value.
func ExecuteResilientFor[T any](ctx context.Context, m *Manager, operationID string, fn func() (T, error)) (T, error) {
	var result T
	err := m.ExecuteResilient(ctx, operationID, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Reset discards all resilience state for one operation id.
func (m *Manager) Reset(operationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, operationID)
	delete(m.limiters, operationID)
}

// ResetAll discards all resilience state.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers = make(map[string]*CircuitBreaker)
	m.limiters = make(map[string]*RateLimiter)
}

// Operations returns the ids that currently hold state.
func (m *Manager) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.breakers)+len(m.limiters))
	for id := range m.breakers {
		seen[id] = true
	}
	for id := range m.limiters {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// policyLocked returns the policy for an id. Callers must hold m.mu.
func (m *Manager) policyLocked(operationID string) ManagerConfig {
	if cfg, ok := m.policies[operationID]; ok {
		return cfg
	}
	return m.config
}
