package adapter

import (
	"context"
	"net/url"
)

// TypeSonarr is the service type string for Sonarr instances.
const TypeSonarr = "sonarr"

// Sonarr speaks the Sonarr v3 API. Authentication is an X-Api-Key header.
type Sonarr struct {
	*Base
}

// NewSonarr builds a Sonarr adapter. Port defaults to 8989.
func NewSonarr(cfg Config, opts ...Option) (*Sonarr, error) {
	if cfg.Port == 0 {
		cfg.Port = 8989
	}
	if cfg.AuthType == "" && cfg.APIKey != "" {
		cfg.AuthType = AuthAPIKey
	}

	opts = append([]Option{
		WithHealthPath("/api/v3/system/status"),
		WithErrorMapper(arrErrorMapper),
	}, opts...)

	base, err := NewBase(TypeSonarr, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Sonarr{Base: base}, nil
}

// SystemStatus returns the instance's system status document.
func (s *Sonarr) SystemStatus(ctx context.Context) (map[string]any, error) {
	return getJSON[map[string]any](ctx, s.Base, "/api/v3/system/status", nil)
}

// Series lists the configured series.
func (s *Sonarr) Series(ctx context.Context) ([]any, error) {
	return getJSON[[]any](ctx, s.Base, "/api/v3/series", nil)
}

// Calendar returns upcoming episodes for the given date range.
func (s *Sonarr) Calendar(ctx context.Context, start, end string) ([]any, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	return getJSON[[]any](ctx, s.Base, "/api/v3/calendar", q)
}

var _ ServiceAdapter = (*Sonarr)(nil)
