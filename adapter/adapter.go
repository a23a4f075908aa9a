// Package adapter provides typed HTTP clients for the supported home-lab
// services. A Base adapter carries the shared plumbing (URL construction,
// auth headers, retryable connects, error classification); per-service
// adapters embed it and contribute their health endpoint, default ports,
// and error mapping.
package adapter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/logger"
	"github.com/TOoSmOotH/homie-sub000/resilience"
)

// ServiceAdapter is the capability surface a service adapter exposes.
// Implementations embed *Base and customize behavior through options.
type ServiceAdapter interface {
	// ServiceType returns the service family this adapter speaks to.
	ServiceType() string
	// Connect verifies reachability with a bounded retry loop.
	Connect(ctx context.Context) error
	// Disconnect clears connection state. Safe to call repeatedly.
	Disconnect()
	// HealthCheck performs a single reachability probe.
	HealthCheck(ctx context.Context) error
	// State returns a snapshot of the connection lifecycle.
	State() ConnectionState
	// UpdateConfig swaps in a new configuration atomically. If the new
	// configuration cannot serve traffic the previous one is restored.
	UpdateConfig(ctx context.Context, cfg Config) error

	Get(ctx context.Context, path string, query url.Values) (*Response, error)
	Post(ctx context.Context, path string, body any) (*Response, error)
	Put(ctx context.Context, path string, body any) (*Response, error)
	Patch(ctx context.Context, path string, body any) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)
}

// Response is a decoded-enough HTTP response: status, headers, raw body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("adapter: empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// JSON decodes the body into a generic value, or returns the raw string
// when the body is not JSON.
func (r *Response) JSON() any {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return string(r.Body)
	}
	return v
}

// ErrorMapper lets a service adapter reshape a classified error using
// service-specific knowledge (status conventions, error body formats).
type ErrorMapper func(*errors.AdapterError, *Response) *errors.AdapterError

// RequestInterceptor mutates an outgoing request before it is sent.
type RequestInterceptor func(*http.Request) error

// Option customizes a Base adapter at construction time.
type Option func(*Base)

// WithLogger sets the adapter's logger.
func WithLogger(log *logger.Logger) Option {
	return func(b *Base) { b.log = log }
}

// WithResilience runs every request under the manager's policy stack,
// keyed by service type and method.
func WithResilience(m *resilience.Manager) Option {
	return func(b *Base) { b.resilience = m }
}

// WithHealthPath sets the reachability probe path.
func WithHealthPath(path string) Option {
	return func(b *Base) { b.healthPath = path }
}

// WithErrorMapper sets the service-specific error mapping strategy.
func WithErrorMapper(fn ErrorMapper) Option {
	return func(b *Base) { b.mapError = fn }
}

// WithRequestInterceptor appends a request interceptor.
func WithRequestInterceptor(fn RequestInterceptor) Option {
	return func(b *Base) { b.interceptors = append(b.interceptors, fn) }
}

// Base implements ServiceAdapter over HTTP. It is safe for concurrent use;
// UpdateConfig swaps the client and config under a write lock.
type Base struct {
	serviceType string
	healthPath  string
	mapError    ErrorMapper

	mu      sync.RWMutex
	cfg     Config
	baseURL string
	client  *http.Client

	state        *connState
	interceptors []RequestInterceptor
	resilience   *resilience.Manager
	log          *logger.Logger
}

// NewBase builds an adapter for the given service type.
func NewBase(serviceType string, cfg Config, opts ...Option) (*Base, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigInvalid(err.Error()).WithCause(err)
	}

	client, err := buildClient(&cfg)
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error()).WithCause(err)
	}

	b := &Base{
		serviceType: serviceType,
		healthPath:  "/",
		cfg:         cfg,
		baseURL:     cfg.BaseURL(),
		client:      client,
		state:       newConnState(cfg.MaxRetries),
		log:         logger.Get("adapter." + serviceType),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// buildClient constructs an http.Client honoring the TLS settings.
func buildClient(cfg *Config) (*http.Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify} //nolint:gosec
	if cfg.AuthType == AuthCertificate {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("adapter: load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:     tlsCfg,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}

// ServiceType returns the service family this adapter speaks to.
func (b *Base) ServiceType() string { return b.serviceType }

// BaseURL returns the current base URL.
func (b *Base) BaseURL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseURL
}

// Config returns a copy of the current configuration.
func (b *Base) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// State returns a snapshot of the connection lifecycle.
func (b *Base) State() ConnectionState { return b.state.snapshot() }

// HealthCheck probes the service's health endpoint once. It bypasses the
// connect gate in do, since Connect itself drives it.
func (b *Base) HealthCheck(ctx context.Context) error {
	_, err := b.exec(ctx, http.MethodGet, b.healthPath, nil, nil)
	return err
}

// Connect verifies reachability, retrying up to MaxRetries times with a
// fixed delay between attempts. Already-connected adapters return
// immediately.
func (b *Base) Connect(ctx context.Context) error {
	if b.state.connected() {
		return nil
	}

	b.mu.RLock()
	maxRetries := b.cfg.MaxRetries
	delay := b.cfg.RetryDelay
	b.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Timeout("connect", ctx.Err())
			case <-time.After(delay):
			}
		}

		b.state.markAttempt()
		if err := b.HealthCheck(ctx); err != nil {
			lastErr = err
			b.state.markFailure(err)
			b.log.Warn("connection attempt failed", map[string]interface{}{
				logger.FieldServiceType: b.serviceType,
				"attempt":               attempt + 1,
				logger.FieldError:       err.Error(),
			})
			continue
		}

		b.state.markConnected()
		b.log.Info("connected", map[string]interface{}{
			logger.FieldServiceType: b.serviceType,
			logger.FieldEndpoint:    b.BaseURL(),
		})
		return nil
	}

	return errors.ConnectionFailed(b.BaseURL(), lastErr)
}

// Disconnect clears connection state. The underlying client keeps its
// idle pool; subsequent calls reconnect lazily.
func (b *Base) Disconnect() {
	b.state.markDisconnected()
}

// UpdateConfig validates and applies a new configuration. The client is
// rebuilt when transport settings changed, and if the adapter was connected
// the new configuration must pass a health check; otherwise the previous
// configuration is restored and the error returned.
func (b *Base) UpdateConfig(ctx context.Context, next Config) error {
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error()).WithCause(err)
	}

	newClient, err := buildClient(&next)
	if err != nil {
		return errors.ConfigInvalid(err.Error()).WithCause(err)
	}

	b.mu.Lock()
	prevCfg, prevURL, prevClient := b.cfg, b.baseURL, b.client
	b.cfg, b.baseURL, b.client = next, next.BaseURL(), newClient
	b.mu.Unlock()
	b.state.setMaxRetries(next.MaxRetries)

	if !b.state.connected() {
		return nil
	}

	if err := b.HealthCheck(ctx); err != nil {
		b.mu.Lock()
		b.cfg, b.baseURL, b.client = prevCfg, prevURL, prevClient
		b.mu.Unlock()
		b.state.setMaxRetries(prevCfg.MaxRetries)
		b.log.Warn("config update rolled back", map[string]interface{}{
			logger.FieldServiceType: b.serviceType,
			logger.FieldError:       err.Error(),
		})
		return errors.ConfigInvalid("new configuration failed health check").WithCause(err)
	}

	b.log.Info("config updated", map[string]interface{}{
		logger.FieldServiceType: b.serviceType,
		logger.FieldEndpoint:    next.BaseURL(),
	})
	return nil
}

// Get issues a GET request against the service.
func (b *Base) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return b.do(ctx, http.MethodGet, path, nil, query)
}

// Post issues a POST request with a JSON body.
func (b *Base) Post(ctx context.Context, path string, body any) (*Response, error) {
	return b.do(ctx, http.MethodPost, path, body, nil)
}

// Put issues a PUT request with a JSON body.
func (b *Base) Put(ctx context.Context, path string, body any) (*Response, error) {
	return b.do(ctx, http.MethodPut, path, body, nil)
}

// Patch issues a PATCH request with a JSON body.
func (b *Base) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return b.do(ctx, http.MethodPatch, path, body, nil)
}

// Delete issues a DELETE request.
func (b *Base) Delete(ctx context.Context, path string) (*Response, error) {
	return b.do(ctx, http.MethodDelete, path, nil, nil)
}

// do is the gate every request method passes through. A not-yet-connected
// adapter connects first, so callers never need an explicit Connect.
func (b *Base) do(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	if !b.state.connected() {
		if err := b.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return b.exec(ctx, method, path, body, query)
}

// exec builds, sends, and classifies one request. When a resilience manager
// is attached, the send runs under the policy stack keyed by service type
// and method. A successful exchange refreshes the connected state.
func (b *Base) exec(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	// The request is rebuilt per attempt: a retried POST needs a fresh,
	// unconsumed body reader.
	send := func() (*Response, error) {
		req, err := b.newRequest(ctx, method, path, body, query)
		if err != nil {
			return nil, err
		}
		return b.send(client, req)
	}

	var resp *Response
	var err error
	if b.resilience != nil {
		opID := b.serviceType + ":" + method
		resp, err = resilience.ExecuteResilientFor(ctx, b.resilience, opID, send)
	} else {
		resp, err = send()
	}
	if err == nil {
		b.state.markConnected()
	}
	return resp, err
}

func (b *Base) newRequest(ctx context.Context, method, path string, body any, query url.Values) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := b.BaseURL() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Validation("body", "request body is not serializable").WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Validation("request", err.Error()).WithCause(err)
	}

	b.mu.RLock()
	cfg := b.cfg
	b.mu.RUnlock()

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range cfg.AuthHeaders() {
		req.Header.Set(k, v)
	}
	if cfg.AuthType == AuthBasic {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	for _, fn := range b.interceptors {
		if err := fn(req); err != nil {
			return nil, errors.Validation("interceptor", err.Error()).WithCause(err)
		}
	}
	return req, nil
}

func (b *Base) send(client *http.Client, req *http.Request) (*Response, error) {
	start := time.Now()
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, b.classifyNetError(req, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Transport("http", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
	}

	b.log.Debug("request complete", map[string]interface{}{
		logger.FieldServiceType: b.serviceType,
		"method":                req.Method,
		"path":                  req.URL.Path,
		logger.FieldStatus:      resp.StatusCode,
		logger.FieldDuration:    time.Since(start).Milliseconds(),
	})

	if adapterErr := errors.FromHTTPStatus(resp.StatusCode, truncate(string(data), 512)); adapterErr != nil {
		if b.mapError != nil {
			adapterErr = b.mapError(adapterErr, resp)
		}
		return resp, adapterErr
	}
	return resp, nil
}

func (b *Base) classifyNetError(req *http.Request, err error) *errors.AdapterError {
	if req.Context().Err() == context.DeadlineExceeded {
		return errors.Timeout(req.Method+" "+req.URL.Path, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Timeout(req.Method+" "+req.URL.Path, err)
	}
	return errors.ConnectionFailed(b.BaseURL(), err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ServiceAdapter = (*Base)(nil)
