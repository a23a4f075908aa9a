package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TOoSmOotH/homie-sub000/errors"
	"github.com/TOoSmOotH/homie-sub000/interpolate"
	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// WSTransport executes ws endpoints: connect, optionally send one text
// frame, read the first inbound frame, close. Services that push state on
// connect (Home Assistant's auth challenge, for one) fit this shape.
type WSTransport struct {
	dialer *websocket.Dialer
}

// NewWSTransport creates the ws transport.
func NewWSTransport() *WSTransport {
	return &WSTransport{dialer: websocket.DefaultDialer}
}

// DefaultTimeout is the per-call fallback for ws endpoints.
func (t *WSTransport) DefaultTimeout() time.Duration { return 5 * time.Second }

// Execute runs one ws endpoint.
func (t *WSTransport) Execute(ctx context.Context, svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (any, error) {
	target, err := wsTarget(svc, def, params)
	if err != nil {
		return nil, err
	}

	conn, _, err := t.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.ConnectionFailed(target, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if def.Message != "" {
		msg := interpolate.Interpolate(def.Message, params)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return nil, errors.Transport("ws", err)
		}
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Timeout("ws read", ctx.Err())
		}
		return nil, errors.Transport("ws", err)
	}

	if def.Parser == manifest.ParserRaw {
		return string(frame), nil
	}
	var decoded any
	if json.Unmarshal(frame, &decoded) == nil {
		return decoded, nil
	}
	return string(frame), nil
}

// wsTarget resolves the ws(s) URL: the endpoint's explicit URL, or one
// derived from the service's base configuration with the scheme mapped to
// the websocket equivalent.
func wsTarget(svc *store.Service, def manifest.EndpointDefinition, params map[string]any) (string, error) {
	if def.URL != "" {
		target := interpolate.Interpolate(def.URL, params)
		if interpolate.HasUnresolved(target) {
			return "", errors.ConfigInvalid("endpoint url has unresolved placeholders: " + target)
		}
		return httpToWS(target), nil
	}

	base, err := serviceBaseURL(svc)
	if err != nil {
		return "", err
	}
	path := interpolate.Interpolate(def.Path, params)
	if interpolate.HasUnresolved(path) {
		return "", errors.ConfigInvalid("endpoint path has unresolved placeholders: " + path)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return httpToWS(base) + path, nil
}

// httpToWS maps http(s) schemes onto ws(s); bare targets get ws://.
func httpToWS(target string) string {
	switch {
	case strings.HasPrefix(target, "https://"):
		return "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		return "ws://" + strings.TrimPrefix(target, "http://")
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		return target
	default:
		return fmt.Sprintf("ws://%s", target)
	}
}

var _ Transport = (*WSTransport)(nil)
