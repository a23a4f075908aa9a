package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

// TypeSABnzbd is the service type string for SABnzbd instances.
const TypeSABnzbd = "sabnzbd"

// SABnzbd speaks the SABnzbd JSON API. Unlike the *arr services the API key
// travels as a query parameter, so a request interceptor appends it along
// with output=json to every call.
type SABnzbd struct {
	*Base
}

// NewSABnzbd builds a SABnzbd adapter. Port defaults to 8080.
func NewSABnzbd(cfg Config, opts ...Option) (*SABnzbd, error) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	apiKey := cfg.APIKey
	// The key is injected as a query parameter, not a header.
	cfg.AuthType = AuthNone

	opts = append([]Option{
		WithHealthPath("/api?mode=version"),
		WithRequestInterceptor(func(req *http.Request) error {
			q := req.URL.Query()
			q.Set("output", "json")
			if apiKey != "" {
				q.Set("apikey", apiKey)
			}
			req.URL.RawQuery = q.Encode()
			return nil
		}),
	}, opts...)

	base, err := NewBase(TypeSABnzbd, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &SABnzbd{Base: base}, nil
}

// Version returns the instance version string.
func (s *SABnzbd) Version(ctx context.Context) (string, error) {
	out, err := s.call(ctx, "version")
	if err != nil {
		return "", err
	}
	v, _ := out["version"].(string)
	return v, nil
}

// Queue returns the current download queue.
func (s *SABnzbd) Queue(ctx context.Context) (map[string]any, error) {
	return s.call(ctx, "queue")
}

// History returns the completed download history.
func (s *SABnzbd) History(ctx context.Context) (map[string]any, error) {
	return s.call(ctx, "history")
}

// call issues one API mode call and lifts SABnzbd's in-band errors. The
// service answers HTTP 200 with {"status": false, "error": "..."} on
// failures such as a wrong API key.
func (s *SABnzbd) call(ctx context.Context, mode string) (map[string]any, error) {
	q := url.Values{}
	q.Set("mode", mode)
	out, err := getJSON[map[string]any](ctx, s.Base, "/api", q)
	if err != nil {
		return nil, err
	}
	if ok, present := out["status"].(bool); present && !ok {
		msg, _ := out["error"].(string)
		if msg == "" {
			msg = "request rejected"
		}
		return nil, errors.Remote(msg, http.StatusUnauthorized)
	}
	return out, nil
}

var _ ServiceAdapter = (*SABnzbd)(nil)
