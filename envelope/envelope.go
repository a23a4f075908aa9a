// Package envelope normalizes every adapter and dispatch outcome into the
// single response shape the rest of the application depends on. The JSON
// field names are a wire contract and must not change.
package envelope

import (
	"time"

	"github.com/google/uuid"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

// Envelope is the outbound response contract, discriminated on Success.
// An envelope is immutable once constructed.
type Envelope struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody is the serialized form of an AdapterError.
type ErrorBody struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"httpStatus,omitempty"`
	Retryable  bool           `json:"retryable"`
}

// Metadata carries call context alongside every response.
type Metadata struct {
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlationId"`
	ServiceType   string      `json:"serviceType,omitempty"`
	Operation     string      `json:"operation,omitempty"`
	Duration      int64       `json:"duration"`
	Pagination    *Pagination `json:"pagination,omitempty"`
	RateLimit     *RateLimit  `json:"rateLimit,omitempty"`
	Cache         *Cache      `json:"cache,omitempty"`
}

// Pagination describes a paged result set.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// RateLimit reports the remote's rate-limit headers when present.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Cache reports whether a response was served from cache.
type Cache struct {
	Hit bool   `json:"hit"`
	Key string `json:"key,omitempty"`
	TTL int64  `json:"ttl,omitempty"`
}

// Option customizes envelope metadata at construction time.
type Option func(*Metadata)

// WithServiceType tags the envelope with the originating service type.
func WithServiceType(serviceType string) Option {
	return func(m *Metadata) { m.ServiceType = serviceType }
}

// WithOperation tags the envelope with the logical operation name.
func WithOperation(operation string) Option {
	return func(m *Metadata) { m.Operation = operation }
}

// WithCorrelationID overrides the generated correlation id, for callers that
// propagate an upstream id.
func WithCorrelationID(id string) Option {
	return func(m *Metadata) { m.CorrelationID = id }
}

// WithPagination attaches pagination metadata.
func WithPagination(p *Pagination) Option {
	return func(m *Metadata) { m.Pagination = p }
}

// WithRateLimit attaches remote rate-limit metadata.
func WithRateLimit(rl *RateLimit) Option {
	return func(m *Metadata) { m.RateLimit = rl }
}

// WithCache attaches cache metadata.
func WithCache(c *Cache) Option {
	return func(m *Metadata) { m.Cache = c }
}

// OK builds a success envelope around data.
func OK(data any, elapsed time.Duration, opts ...Option) *Envelope {
	return &Envelope{
		Success:  true,
		Data:     data,
		Metadata: newMetadata(elapsed, opts...),
	}
}

// Fail builds an error envelope. Any error is accepted; non-AdapterErrors are
// wrapped so the body always carries a code and a retryable verdict.
func Fail(err error, elapsed time.Duration, opts ...Option) *Envelope {
	ae := errors.AsAdapterError(err)
	return &Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:       string(ae.Code),
			Message:    ae.Message,
			Details:    ae.Details,
			HTTPStatus: ae.HTTPStatus,
			Retryable:  ae.Retryable,
		},
		Metadata: newMetadata(elapsed, opts...),
	}
}

func newMetadata(elapsed time.Duration, opts ...Option) Metadata {
	m := Metadata{
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Duration:      elapsed.Milliseconds(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
