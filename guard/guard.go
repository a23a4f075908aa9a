// Package guard validates requests bound for privileged transports (the
// container control socket and remote shell execution) before anything is
// sent. The control-socket policy is a default-deny allow-list: paths and
// methods not explicitly permitted are rejected, so new dangerous engine
// endpoints stay blocked without code changes.
//
// A command that passes ValidateRemoteCommand is still executed verbatim on
// the remote host. The guard reduces the blast radius of a hostile manifest;
// it is not a sandbox.
package guard

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

// Allow-listed read-only control-socket paths. Version suffixes such as
// /v1.47/info are stripped before matching.
var allowedSocketPaths = map[string]bool{
	"/version":         true,
	"/info":            true,
	"/_ping":           true,
	"/containers/json": true,
	"/images/json":     true,
	"/networks":        true,
	"/volumes":         true,
	"/system/df":       true,
	"/events":          false, // streaming; not supported by the dispatcher
}

// Mutating verbs rejected anywhere in a control-socket path, regardless of
// HTTP method.
var mutatingVerbs = []string{
	"create", "kill", "remove", "delete", "restart", "pause", "unpause",
	"exec", "start", "stop", "rename", "update", "prune", "push", "commit",
}

var (
	versionPrefixRe = regexp.MustCompile(`^/v[0-9]+(\.[0-9]+)?`)
	inspectPathRe   = regexp.MustCompile(`^/(containers|images|networks|volumes)/[^/]+/json$`)
)

// ValidateControlSocketRequest checks a request bound for the container
// control socket against the allow-list. It returns a validation error naming
// the violated rule, or nil if the request is permitted.
func ValidateControlSocketRequest(method, path string) error {
	normalized := normalizeSocketPath(path)

	for _, verb := range mutatingVerbs {
		if strings.Contains(normalized, verb) {
			return errors.Validation("socket-no-mutating-verbs",
				"control socket path contains mutating verb "+verb).
				WithDetail("path", path)
		}
	}

	if !strings.EqualFold(method, http.MethodGet) {
		return errors.Validation("socket-get-only",
			"control socket requests must use GET, got "+method).
			WithDetail("path", path)
	}

	if allowedSocketPaths[normalized] || inspectPathRe.MatchString(normalized) {
		return nil
	}

	return errors.Validation("socket-path-not-allowed",
		"control socket path is not on the allow-list").
		WithDetail("path", path)
}

// Shell metacharacters that enable command chaining or redirection.
var shellMetaPatterns = []string{"|", "&&", ";", ">", "<", "`", "$("}

// Destructive binaries and known fork-bomb patterns, matched as substrings
// of the whole command.
var deniedCommandPatterns = []string{
	"rm -rf", "rm -fr", "mkfs", "dd if=", ":(){", "shutdown", "reboot",
	"halt", "poweroff", "init 0", "init 6",
}

// ValidateRemoteCommand checks a remote shell command against the
// metacharacter and destructive-binary denylists. A passing command is still
// executed verbatim; the residual risk is documented at the package level.
func ValidateRemoteCommand(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return errors.Validation("command-empty", "remote command is empty")
	}

	for _, meta := range shellMetaPatterns {
		if strings.Contains(trimmed, meta) {
			return errors.Validation("command-no-chaining",
				"remote command contains shell metacharacter "+meta).
				WithDetail("command", command)
		}
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range deniedCommandPatterns {
		if strings.Contains(lower, pattern) {
			return errors.Validation("command-denied-binary",
				"remote command matches denied pattern "+pattern).
				WithDetail("command", command)
		}
	}

	return nil
}

// normalizeSocketPath strips the API version prefix and any query string.
func normalizeSocketPath(path string) string {
	if i := strings.IndexByte(path, '?'); i != -1 {
		path = path[:i]
	}
	path = versionPrefixRe.ReplaceAllString(path, "")
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
