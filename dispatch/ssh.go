package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/guard"
	"github.com/TOoSmOotH/homie-sub000/interpolate"
	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// SSHTransport executes ssh endpoints: one command per dispatch over a
// fresh connection. Commands pass the remote-command guard before any
// connection is opened. Host keys are not verified; lab hosts rarely have
// stable known_hosts entries and the credentials already come from the
// same trusted store.
type SSHTransport struct{}

// NewSSHTransport creates the ssh transport.
func NewSSHTransport() *SSHTransport { return &SSHTransport{} }

// DefaultTimeout is the per-call fallback for ssh endpoints.
func (t *SSHTransport) DefaultTimeout() time.Duration { return 30 * time.Second }

// Execute runs one remote command. The result carries stdout, stderr, and
// the exit code; with the json parser, stdout that decodes cleanly replaces
// the raw result.
func (t *SSHTransport) Execute(ctx context.Context, svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (any, error) {
	command := interpolate.Interpolate(def.Command, params)
	if interpolate.HasUnresolved(command) {
		return nil, errors.ConfigInvalid("command has unresolved placeholders: " + command)
	}
	if err := guard.ValidateRemoteCommand(command); err != nil {
		return nil, err
	}

	clientCfg, addr, err := sshClientConfig(ctx, svc)
	if err != nil {
		return nil, err
	}

	client, err := dialSSH(ctx, addr, clientCfg)
	if err != nil {
		return nil, errors.ConnectionFailed(addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, errors.Transport("ssh", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	exitCode := 0
	if err := runSession(ctx, session, command); err != nil {
		var exitErr *ssh.ExitError
		switch {
		case stderrors.As(err, &exitErr):
			exitCode = exitErr.ExitStatus()
		case ctx.Err() != nil:
			return nil, errors.Timeout(command, ctx.Err())
		default:
			return nil, errors.Transport("ssh", err)
		}
	}

	if exitCode != 0 && !def.AllowNonZeroExit {
		return nil, errors.Remote(
			fmt.Sprintf("command exited with code %d: %s", exitCode, truncate(stderr.String(), 256)), 0).
			WithDetail("exitCode", exitCode)
	}

	result := map[string]any{
		"stdout":   stdout.String(),
		"stderr":   stderr.String(),
		"exitCode": exitCode,
	}

	if def.Parser == manifest.ParserJSON {
		var decoded any
		if json.Unmarshal(stdout.Bytes(), &decoded) == nil {
			return decoded, nil
		}
	}
	return result, nil
}

// runSession runs the command and enforces the context deadline, which the
// ssh package does not honor on its own.
func runSession(ctx context.Context, session *ssh.Session, command string) error {
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	}
}

// dialSSH dials with the context deadline applied to the TCP connect and
// handshake.
func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// sshClientConfig derives the ssh credentials from the service config:
// username plus a password, a PEM private key, or both.
func sshClientConfig(ctx context.Context, svc *store.Service) (*ssh.ClientConfig, string, error) {
	host, _ := svc.Config["host"].(string)
	if host == "" {
		return nil, "", errors.ConfigInvalid("service config has no host")
	}
	port := interpolate.Stringify(svc.Config["sshPort"])
	if port == "" || port == "0" {
		port = "22"
	}

	username, _ := svc.Config["username"].(string)
	if username == "" {
		return nil, "", errors.ConfigInvalid("ssh requires a username in the service config")
	}

	var methods []ssh.AuthMethod
	if key, _ := svc.Config["privateKey"].(string); key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, "", errors.ConfigInvalid("private key is not parseable").WithCause(err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if password, _ := svc.Config["password"].(string); password != "" {
		methods = append(methods, ssh.Password(password))
	}
	if len(methods) == 0 {
		return nil, "", errors.ConfigInvalid("ssh requires a password or private key in the service config")
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         timeout,
	}, net.JoinHostPort(host, port), nil
}

var _ Transport = (*SSHTransport)(nil)
