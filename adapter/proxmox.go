package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

// TypeProxmox is the service type string for Proxmox VE instances.
const TypeProxmox = "proxmox"

// Proxmox speaks the Proxmox VE API. It authenticates with an API token
// (Authorization: PVEAPIToken=user@realm!tokenid=secret); the web UI's
// ticket flow is not supported. Proxmox serves self-signed TLS on 8006 by
// default, so UseSSL is forced on.
type Proxmox struct {
	*Base
}

// NewProxmox builds a Proxmox adapter. Port defaults to 8006.
func NewProxmox(cfg Config, opts ...Option) (*Proxmox, error) {
	if cfg.Port == 0 {
		cfg.Port = 8006
	}
	cfg.UseSSL = true
	token := cfg.Token
	// Proxmox uses its own Authorization scheme, not Bearer.
	cfg.AuthType = AuthNone

	opts = append([]Option{
		WithHealthPath("/api2/json/version"),
		WithRequestInterceptor(func(req *http.Request) error {
			if token != "" {
				req.Header.Set("Authorization", "PVEAPIToken="+token)
			}
			return nil
		}),
		WithErrorMapper(proxmoxErrorMapper),
	}, opts...)

	base, err := NewBase(TypeProxmox, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Proxmox{Base: base}, nil
}

// Version returns the cluster version document.
func (p *Proxmox) Version(ctx context.Context) (map[string]any, error) {
	return p.getData(ctx, "/api2/json/version")
}

// Nodes lists the cluster nodes.
func (p *Proxmox) Nodes(ctx context.Context) ([]any, error) {
	out, err := getJSON[map[string]any](ctx, p.Base, "/api2/json/nodes", nil)
	if err != nil {
		return nil, err
	}
	data, _ := out["data"].([]any)
	return data, nil
}

// NodeStatus returns one node's status document.
func (p *Proxmox) NodeStatus(ctx context.Context, node string) (map[string]any, error) {
	return p.getData(ctx, fmt.Sprintf("/api2/json/nodes/%s/status", node))
}

// getData unwraps the {"data": ...} envelope every Proxmox response carries.
func (p *Proxmox) getData(ctx context.Context, path string) (map[string]any, error) {
	out, err := getJSON[map[string]any](ctx, p.Base, path, nil)
	if err != nil {
		return nil, err
	}
	data, _ := out["data"].(map[string]any)
	return data, nil
}

// proxmoxErrorMapper rewrites Proxmox's auth failures, which come back as
// 401 with a reason in the status line rather than the body.
func proxmoxErrorMapper(err *errors.AdapterError, resp *Response) *errors.AdapterError {
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		err.Message = "authentication rejected, check the API token"
	}
	return err
}

var _ ServiceAdapter = (*Proxmox)(nil)
