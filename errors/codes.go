package errors

// Code is a machine-readable error code.
type Code string

// Validation errors (never retried).
const (
	// CodeValidation indicates a guard rejection or invalid input.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeConfigInvalid indicates an invalid adapter or service configuration.
	CodeConfigInvalid Code = "CONFIG_INVALID"
	// CodeEndpointNotFound indicates the named endpoint is absent from the manifest.
	CodeEndpointNotFound Code = "ENDPOINT_NOT_FOUND"
)

// Transport errors (network/socket/ssh/ws failures).
const (
	// CodeTransport indicates a network-level failure before a remote verdict.
	CodeTransport Code = "TRANSPORT_ERROR"
	// CodeTimeout indicates the call exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeConnectionFailed indicates the remote could not be reached.
	CodeConnectionFailed Code = "CONNECTION_FAILED"
	// CodeRateLimited indicates the local rate limiter or remote rejected for rate.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeCircuitOpen indicates the circuit breaker rejected the call.
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// Remote errors (the remote answered, unfavourably).
const (
	// CodeRemote indicates a non-2xx HTTP response or non-zero exit code.
	CodeRemote Code = "REMOTE_ERROR"
	// CodeAuth indicates the remote rejected our credentials.
	CodeAuth Code = "AUTH_ERROR"
	// CodeNotFound indicates the remote resource was not found.
	CodeNotFound Code = "NOT_FOUND"
)

// Soft errors (downgraded, never surfaced as call failures).
const (
	// CodeTransform indicates a declarative transform failed; original data is kept.
	CodeTransform Code = "TRANSFORM_ERROR"
	// CodeDiscovery indicates a discovery probe failed; reported as "not detected".
	CodeDiscovery Code = "DISCOVERY_ERROR"
)

var retryableCodes = map[Code]bool{
	CodeTransport:        true,
	CodeTimeout:          true,
	CodeConnectionFailed: true,
	CodeRateLimited:      true,
}

// IsRetryableCode reports whether the code indicates a retryable error.
func IsRetryableCode(code Code) bool {
	return retryableCodes[code]
}
