package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// AuthType identifies the authentication method an adapter applies.
type AuthType string

const (
	// AuthNone disables authentication.
	AuthNone AuthType = "none"
	// AuthAPIKey sends the key in a service-specific header.
	AuthAPIKey AuthType = "api_key"
	// AuthToken sends a bearer token.
	AuthToken AuthType = "token"
	// AuthBasic uses HTTP basic authentication.
	AuthBasic AuthType = "basic"
	// AuthCertificate authenticates at the TLS layer, not via headers.
	AuthCertificate AuthType = "certificate"
)

// Config is an adapter's connection configuration. Adapters hold a copy;
// the stored service record remains the source of truth.
type Config struct {
	// Host is the service hostname or IP.
	Host string `json:"host" validate:"required"`
	// Port is the service port. Zero omits the port from the base URL.
	Port int `json:"port" validate:"min=0,max=65535"`
	// UseSSL selects https for the base URL.
	UseSSL bool `json:"useSsl"`
	// SkipTLSVerify disables certificate verification (self-signed lab gear).
	SkipTLSVerify bool `json:"skipTlsVerify"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout"`
	// MaxRetries bounds the connect retry loop.
	MaxRetries int `json:"maxRetries" validate:"min=0,max=20"`
	// RetryDelay is the fixed delay between connect attempts.
	RetryDelay time.Duration `json:"retryDelay"`

	// AuthType selects the authentication method.
	AuthType AuthType `json:"authType" validate:"omitempty,oneof=none api_key token basic certificate"`
	// APIKey is the secret for AuthAPIKey.
	APIKey string `json:"apiKey,omitempty"`
	// APIKeyHeader is the header carrying the API key. Defaults per service.
	APIKeyHeader string `json:"apiKeyHeader,omitempty"`
	// Token is the bearer token for AuthToken.
	Token string `json:"token,omitempty"`
	// Username and Password are the credentials for AuthBasic.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// ClientCertFile and ClientKeyFile are paths for AuthCertificate.
	ClientCertFile string `json:"clientCertFile,omitempty"`
	ClientKeyFile  string `json:"clientKeyFile,omitempty"`

	// Headers are custom headers applied to every request.
	Headers map[string]string `json:"headers,omitempty"`
	// Extra is service-specific sub-configuration, passed through opaque.
	Extra json.RawMessage `json:"extra,omitempty"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.AuthType == "" {
		c.AuthType = AuthNone
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-Api-Key"
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural validity plus auth-type coherence.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("adapter: config invalid: %w", err)
	}

	switch c.AuthType {
	case AuthAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("adapter: auth type api_key requires apiKey")
		}
	case AuthToken:
		if c.Token == "" {
			return fmt.Errorf("adapter: auth type token requires token")
		}
	case AuthBasic:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("adapter: auth type basic requires username and password")
		}
	case AuthCertificate:
		if c.ClientCertFile == "" || c.ClientKeyFile == "" {
			return fmt.Errorf("adapter: auth type certificate requires cert and key files")
		}
	}
	return nil
}

// BaseURL builds scheme://host[:port] from the config.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	if c.Port > 0 {
		return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
	}
	return fmt.Sprintf("%s://%s", scheme, c.Host)
}

// AuthHeaders derives the authentication headers for this config.
// Certificate auth happens at the transport level and contributes none.
func (c Config) AuthHeaders() map[string]string {
	switch c.AuthType {
	case AuthAPIKey:
		return map[string]string{c.APIKeyHeader: c.APIKey}
	case AuthToken:
		return map[string]string{"Authorization": "Bearer " + c.Token}
	default:
		return nil
	}
}
