package dispatch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/docker/go-connections/sockets"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/guard"
	"github.com/TOoSmOotH/homie-sub000/interpolate"
	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// DefaultDockerSocket is the engine's standard unix socket path.
const DefaultDockerSocket = "/var/run/docker.sock"

// DockerTransport executes docker endpoints against the local engine's
// unix socket. Every request path passes the control-surface allow list
// before any I/O happens; the socket grants root-equivalent power and this
// layer only ever exposes its read-only corner.
type DockerTransport struct {
	client *http.Client
}

// NewDockerTransport creates the transport bound to socketPath, or the
// standard socket when empty.
func NewDockerTransport(socketPath string) *DockerTransport {
	if socketPath == "" {
		socketPath = DefaultDockerSocket
	}
	tr := &http.Transport{}
	_ = sockets.ConfigureTransport(tr, "unix", socketPath)
	return &DockerTransport{client: &http.Client{Transport: tr}}
}

// DefaultTimeout is the per-call fallback for docker endpoints.
func (t *DockerTransport) DefaultTimeout() time.Duration { return 10 * time.Second }

// Execute runs one docker endpoint.
func (t *DockerTransport) Execute(ctx context.Context, _ *store.Service, def manifest.EndpointDefinition, params map[string]any) (any, error) {
	path := interpolate.Interpolate(def.Path, params)
	if interpolate.HasUnresolved(path) {
		return nil, errors.ConfigInvalid("endpoint path has unresolved placeholders: " + path)
	}

	if err := guard.ValidateControlSocketRequest(def.Method, path); err != nil {
		return nil, err
	}

	// The host segment is a placeholder; the unix dialer ignores it.
	req, err := http.NewRequestWithContext(ctx, def.Method, "http://docker"+path, nil)
	if err != nil {
		return nil, errors.ConfigInvalid("endpoint produced an invalid request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	for key, tmpl := range def.Params {
		val := interpolate.Interpolate(tmpl, params)
		if interpolate.HasUnresolved(val) {
			continue
		}
		q.Set(key, val)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport("docker", err)
	}
	if adapterErr := errors.FromHTTPStatus(resp.StatusCode, truncate(string(data), 512)); adapterErr != nil {
		return nil, adapterErr
	}
	return parseBody(def.Parser, data), nil
}

var _ Transport = (*DockerTransport)(nil)
