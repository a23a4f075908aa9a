package dispatch

import (
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
	"time"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/interpolate"
	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// HTTPTransport executes http endpoints. The target is either the
// endpoint's explicit URL or scheme://host[:port] derived from the service
// configuration; paths, headers, params, and bodies are all interpolated
// against the merged parameter context first.
type HTTPTransport struct {
	client         *http.Client
	insecureClient *http.Client
}

// NewHTTPTransport creates the http transport with shared clients. Per-call
// deadlines come from the request context, so the clients carry none.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{},
		insecureClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
	}
}

// DefaultTimeout is the per-call fallback for http endpoints.
func (t *HTTPTransport) DefaultTimeout() time.Duration { return 10 * time.Second }

// Execute runs one http endpoint.
func (t *HTTPTransport) Execute(ctx context.Context, svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (any, error) {
	target, err := buildTarget(svc, def, params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(def.Body) > 0 {
		body = strings.NewReader(interpolate.Interpolate(string(def.Body), params))
	}

	req, err := http.NewRequestWithContext(ctx, def.Method, target, body)
	if err != nil {
		return nil, errors.ConfigInvalid("endpoint produced an invalid request").WithCause(err)
	}

	q := req.URL.Query()
	for key, tmpl := range def.Params {
		val := interpolate.Interpolate(tmpl, params)
		// A parameter that still carries template syntax had no value in
		// the service config; sending the literal would confuse remotes.
		if interpolate.HasUnresolved(val) {
			continue
		}
		q.Set(key, val)
	}
	req.URL.RawQuery = q.Encode()

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, tmpl := range def.Headers {
		val := interpolate.Interpolate(tmpl, params)
		if interpolate.HasUnresolved(val) {
			continue
		}
		req.Header.Set(key, val)
	}

	resp, err := t.pick(params).Do(req)
	if err != nil {
		return nil, classifyHTTPError(req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport("http", err)
	}
	if adapterErr := errors.FromHTTPStatus(resp.StatusCode, truncate(string(data), 512)); adapterErr != nil {
		return nil, adapterErr
	}
	return parseBody(def.Parser, data), nil
}

// pick selects the TLS-verifying or unverified client per the service
// configuration.
func (t *HTTPTransport) pick(params map[string]any) *http.Client {
	if truthy(params["skipTlsVerify"]) {
		return t.insecureClient
	}
	return t.client
}

// buildTarget resolves the absolute target URL for an endpoint.
func buildTarget(svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (string, error) {
	if def.URL != "" {
		target := interpolate.Interpolate(def.URL, params)
		if interpolate.HasUnresolved(target) {
			return "", errors.ConfigInvalid("endpoint url has unresolved placeholders: " + target)
		}
		return target, nil
	}

	base, err := serviceBaseURL(svc)
	if err != nil {
		return "", err
	}
	path := interpolate.Interpolate(def.Path, params)
	if interpolate.HasUnresolved(path) {
		return "", errors.ConfigInvalid("endpoint path has unresolved placeholders: " + path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

// serviceBaseURL builds scheme://host[:port] from a service's stored
// configuration.
func serviceBaseURL(svc *store.Service) (string, error) {
	host, _ := svc.Config["host"].(string)
	if host == "" {
		return "", errors.ConfigInvalid("service config has no host")
	}

	scheme := "http"
	if truthy(svc.Config["useSsl"]) {
		scheme = "https"
	}
	if port := interpolate.Stringify(svc.Config["port"]); port != "" && port != "0" {
		return fmt.Sprintf("%s://%s:%s", scheme, host, port), nil
	}
	return scheme + "://" + host, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}

func parseBody(parser manifest.Parser, data []byte) any {
	if parser == manifest.ParserRaw {
		return string(data)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		// Remotes lie about content types; fall back to the raw text.
		return string(data)
	}
	return v
}

func classifyHTTPError(req *http.Request, err error) *errors.AdapterError {
	if req.Context().Err() == context.DeadlineExceeded {
		return errors.Timeout(req.Method+" "+req.URL.Path, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Timeout(req.Method+" "+req.URL.Path, err)
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return errors.ConnectionFailed(urlErr.URL, err)
	}
	return errors.Transport("http", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Transport = (*HTTPTransport)(nil)
