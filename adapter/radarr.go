package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

// TypeRadarr is the service type string for Radarr instances.
const TypeRadarr = "radarr"

// Radarr speaks the Radarr v3 API. Authentication is an X-Api-Key header.
type Radarr struct {
	*Base
}

// NewRadarr builds a Radarr adapter. Port defaults to 7878.
func NewRadarr(cfg Config, opts ...Option) (*Radarr, error) {
	if cfg.Port == 0 {
		cfg.Port = 7878
	}
	if cfg.AuthType == "" && cfg.APIKey != "" {
		cfg.AuthType = AuthAPIKey
	}

	opts = append([]Option{
		WithHealthPath("/api/v3/system/status"),
		WithErrorMapper(arrErrorMapper),
	}, opts...)

	base, err := NewBase(TypeRadarr, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Radarr{Base: base}, nil
}

// SystemStatus returns the instance's system status document.
func (r *Radarr) SystemStatus(ctx context.Context) (map[string]any, error) {
	return getJSON[map[string]any](ctx, r.Base, "/api/v3/system/status", nil)
}

// Movies lists the configured movies.
func (r *Radarr) Movies(ctx context.Context) ([]any, error) {
	return getJSON[[]any](ctx, r.Base, "/api/v3/movie", nil)
}

// Queue returns the current download queue page.
func (r *Radarr) Queue(ctx context.Context) (map[string]any, error) {
	return getJSON[map[string]any](ctx, r.Base, "/api/v3/queue", nil)
}

// arrErrorMapper reshapes *arr API errors: these services answer 401 with an
// empty body when the API key is wrong, which deserves a clearer message.
func arrErrorMapper(err *errors.AdapterError, resp *Response) *errors.AdapterError {
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		err.Message = "authentication rejected, check the API key"
	}
	return err
}

// getJSON issues a GET and decodes the body into T.
func getJSON[T any](ctx context.Context, b *Base, path string, query url.Values) (T, error) {
	var out T
	resp, err := b.Get(ctx, path, query)
	if err != nil {
		return out, err
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return out, errors.Remote("response body is not valid JSON", resp.StatusCode).WithCause(err)
	}
	return out, nil
}

var _ ServiceAdapter = (*Radarr)(nil)
