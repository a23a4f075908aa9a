package adapter

import (
	"sync"
	"time"
)

// ConnectionState tracks an adapter instance's connection lifecycle. It is
// owned by one adapter and never shared across instances; all mutation goes
// through the owning adapter under the state lock.
type ConnectionState struct {
	IsConnected           bool      `json:"isConnected"`
	RetryCount            int       `json:"retryCount"`
	MaxRetries            int       `json:"maxRetries"`
	LastConnectionAttempt time.Time `json:"lastConnectionAttempt"`
	ConnectionError       string    `json:"connectionError,omitempty"`
}

// connState is the lock-guarded holder inside an adapter.
type connState struct {
	mu    sync.Mutex
	state ConnectionState
}

func newConnState(maxRetries int) *connState {
	return &connState{state: ConnectionState{MaxRetries: maxRetries}}
}

// snapshot returns a copy for callers outside the adapter.
func (c *connState) snapshot() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connState) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsConnected
}

func (c *connState) markAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastConnectionAttempt = time.Now()
}

func (c *connState) markConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsConnected = true
	c.state.RetryCount = 0
	c.state.ConnectionError = ""
}

func (c *connState) markFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsConnected = false
	c.state.RetryCount++
	c.state.ConnectionError = err.Error()
}

func (c *connState) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsConnected = false
	c.state.RetryCount = 0
	c.state.ConnectionError = ""
}

func (c *connState) setMaxRetries(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MaxRetries = n
}
