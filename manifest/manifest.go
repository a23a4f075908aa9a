// Package manifest models the service manifests produced by the marketplace
// collaborator: per-service metadata plus the endpoint definitions the
// dispatcher executes.
package manifest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Transport identifies the wire protocol an endpoint uses.
type Transport string

const (
	TransportHTTP   Transport = "http"
	TransportDocker Transport = "docker"
	TransportSSH    Transport = "ssh"
	TransportWS     Transport = "ws"
)

// Parser selects how a transport response body is interpreted.
type Parser string

const (
	ParserRaw  Parser = "raw"
	ParserJSON Parser = "json"
)

// EndpointDefinition describes how to call one logical operation on a
// service. It is supplied externally as part of a service manifest.
type EndpointDefinition struct {
	// Transport selects http, docker, ssh, or ws. Defaults to http.
	Transport Transport `json:"transport,omitempty"`
	// Method is the HTTP method (http and docker transports).
	Method string `json:"method,omitempty"`
	// Path is the request path (http and docker transports).
	Path string `json:"path,omitempty"`
	// Command is the remote shell command (ssh transport).
	Command string `json:"command,omitempty"`
	// URL is an explicit target URL (ws transport, optional for http).
	URL string `json:"url,omitempty"`
	// Params are query parameters; values may contain {placeholder} tokens.
	Params map[string]string `json:"params,omitempty"`
	// Headers are request headers; values may contain {placeholder} tokens.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is an optional request body template.
	Body json.RawMessage `json:"body,omitempty"`
	// Message is an optional text frame sent after a ws connect.
	Message string `json:"message,omitempty"`
	// Parser selects raw or json response handling. Defaults to json.
	Parser Parser `json:"parser,omitempty"`
	// Transform is a declarative transform expression applied to the result.
	Transform string `json:"transform,omitempty"`
	// TimeoutMs overrides the transport's default per-call timeout.
	TimeoutMs int `json:"timeout,omitempty"`
	// AllowNonZeroExit treats a non-zero exit code as success (ssh only).
	AllowNonZeroExit bool `json:"allowNonZeroExit,omitempty"`
}

// Timeout returns the endpoint's timeout, or fallback when unset.
func (e *EndpointDefinition) Timeout(fallback time.Duration) time.Duration {
	if e.TimeoutMs > 0 {
		return time.Duration(e.TimeoutMs) * time.Millisecond
	}
	return fallback
}

// ApplyDefaults fills in zero-value fields.
func (e *EndpointDefinition) ApplyDefaults() {
	if e.Transport == "" {
		e.Transport = TransportHTTP
	}
	if e.Method == "" && (e.Transport == TransportHTTP || e.Transport == TransportDocker) {
		e.Method = "GET"
	}
	if e.Parser == "" {
		e.Parser = ParserJSON
	}
}

// Validate checks that the definition is executable.
func (e *EndpointDefinition) Validate() error {
	switch e.Transport {
	case TransportHTTP:
		if e.Path == "" && e.URL == "" {
			return fmt.Errorf("manifest: http endpoint requires path or url")
		}
	case TransportDocker:
		if e.Path == "" {
			return fmt.Errorf("manifest: docker endpoint requires path")
		}
	case TransportSSH:
		if e.Command == "" {
			return fmt.Errorf("manifest: ssh endpoint requires command")
		}
	case TransportWS:
		// URL may be derived from the service's base URL at dispatch time.
	default:
		return fmt.Errorf("manifest: unknown transport %q", e.Transport)
	}
	if e.Parser != ParserRaw && e.Parser != ParserJSON {
		return fmt.Errorf("manifest: unknown parser %q", e.Parser)
	}
	return nil
}

// Manifest is an installed service's manifest: identity plus its callable
// endpoints keyed by logical name.
type Manifest struct {
	// ServiceType identifies the service family (radarr, proxmox, ...).
	ServiceType string `json:"serviceType"`
	// DisplayName is the human-readable name shown in the dashboard.
	DisplayName string `json:"displayName,omitempty"`
	// Version is the manifest version from the catalog.
	Version string `json:"version,omitempty"`
	// Endpoints maps logical operation names to their definitions.
	Endpoints map[string]EndpointDefinition `json:"endpoints"`
}

// Endpoint resolves a named endpoint with defaults applied. The boolean is
// false when the manifest does not declare the endpoint.
func (m *Manifest) Endpoint(name string) (EndpointDefinition, bool) {
	def, ok := m.Endpoints[name]
	if !ok {
		return EndpointDefinition{}, false
	}
	def.ApplyDefaults()
	return def, true
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if m.ServiceType == "" {
		return nil, fmt.Errorf("manifest: serviceType is required")
	}
	for name, def := range m.Endpoints {
		def.ApplyDefaults()
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("manifest: endpoint %q: %w", name, err)
		}
		m.Endpoints[name] = def
	}
	return &m, nil
}
