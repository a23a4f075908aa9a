package adapter

import (
	"context"
	"net/url"

	"github.com/TOoSmOotH/homie-sub000/guard"
)

// TypeDocker is the service type string for a Docker Engine reached over
// TCP. Engine access through the local unix socket lives in the dispatch
// layer, not here.
const TypeDocker = "docker"

// Docker speaks the Docker Engine HTTP API in read-only fashion. Every
// request path is checked against the control-surface allow list before it
// leaves the process, so a compromised manifest cannot turn this adapter
// into a container-management backdoor.
type Docker struct {
	*Base
}

// NewDocker builds a Docker Engine adapter. Port defaults to 2375.
func NewDocker(cfg Config, opts ...Option) (*Docker, error) {
	if cfg.Port == 0 {
		cfg.Port = 2375
	}

	opts = append([]Option{
		WithHealthPath("/_ping"),
	}, opts...)

	base, err := NewBase(TypeDocker, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Docker{Base: base}, nil
}

// Ping checks engine liveness.
func (d *Docker) Ping(ctx context.Context) error {
	_, err := d.Get(ctx, "/_ping", nil)
	return err
}

// Info returns the engine's system information.
func (d *Docker) Info(ctx context.Context) (map[string]any, error) {
	return getJSON[map[string]any](ctx, d.Base, "/info", nil)
}

// Containers lists containers. With all set, stopped containers are
// included.
func (d *Docker) Containers(ctx context.Context, all bool) ([]any, error) {
	q := url.Values{}
	if all {
		q.Set("all", "true")
	}
	return getJSON[[]any](ctx, d.Base, "/containers/json", q)
}

// Images lists images known to the engine.
func (d *Docker) Images(ctx context.Context) ([]any, error) {
	return getJSON[[]any](ctx, d.Base, "/images/json", nil)
}

// Call issues an arbitrary engine API request after allow-list validation.
// Mutating paths and verbs are rejected before any I/O happens.
func (d *Docker) Call(ctx context.Context, method, path string, query url.Values) (*Response, error) {
	if err := guard.ValidateControlSocketRequest(method, path); err != nil {
		return nil, err
	}
	return d.do(ctx, method, path, nil, query)
}

var _ ServiceAdapter = (*Docker)(nil)
