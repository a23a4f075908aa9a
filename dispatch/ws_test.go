package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

var testUpgrader = websocket.Upgrader{}

// startWSStub serves a websocket handler and returns host and port.
func startWSStub(t *testing.T, handler func(*websocket.Conn)) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	return u.Hostname(), port
}

func seedWSService(mem *store.Memory, host string, port int, def manifest.EndpointDefinition) {
	mem.Put(&store.Service{
		ID:     "ha-1",
		Type:   "homeassistant",
		Config: map[string]any{"host": host, "port": port, "accessToken": "tok-123"},
		Manifest: &manifest.Manifest{
			ServiceType: "homeassistant",
			Endpoints:   map[string]manifest.EndpointDefinition{"ws": def},
		},
	})
}

func TestWSTransport_SendsMessageAndReadsFirstFrame(t *testing.T) {
	host, port := startWSStub(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, append([]byte(`{"echo": `), append(msg, '}')...))
	})

	mem := store.NewMemory()
	seedWSService(mem, host, port, manifest.EndpointDefinition{
		Transport: manifest.TransportWS,
		Path:      "/api/websocket",
		Message:   `{"type": "auth", "access_token": "{accessToken}"}`,
	})

	d := NewDispatcher(mem, "", WithStatusWriter(mem))
	env := d.Execute(context.Background(), "ha-1", "ws", nil)
	if !env.Success {
		t.Fatalf("envelope = %+v", env.Error)
	}

	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %v", env.Data)
	}
	echo, ok := data["echo"].(map[string]any)
	if !ok || echo["access_token"] != "tok-123" {
		t.Errorf("message not interpolated: %v", data)
	}

	svc, _ := mem.GetService(context.Background(), "ha-1")
	if svc.Status != store.StatusOnline {
		t.Errorf("status = %q, want online", svc.Status)
	}
}

func TestWSTransport_FirstFrameWithoutSend(t *testing.T) {
	host, port := startWSStub(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "auth_required"}`))
	})

	mem := store.NewMemory()
	seedWSService(mem, host, port, manifest.EndpointDefinition{
		Transport: manifest.TransportWS,
		Path:      "/api/websocket",
	})

	d := NewDispatcher(mem, "")
	env := d.Execute(context.Background(), "ha-1", "ws", nil)
	if !env.Success {
		t.Fatalf("envelope = %+v", env.Error)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["type"] != "auth_required" {
		t.Errorf("data = %v", env.Data)
	}
}

func TestWSTransport_ReadTimeout(t *testing.T) {
	host, port := startWSStub(t, func(conn *websocket.Conn) {
		// Write nothing; the client's read deadline must fire.
		time.Sleep(500 * time.Millisecond)
	})

	mem := store.NewMemory()
	seedWSService(mem, host, port, manifest.EndpointDefinition{
		Transport: manifest.TransportWS,
		Path:      "/api/websocket",
		TimeoutMs: 200,
	})

	d := NewDispatcher(mem, "")
	env := d.Execute(context.Background(), "ha-1", "ws", nil)
	if env.Success {
		t.Fatal("expected timeout failure")
	}
	if env.Error.Code != "TIMEOUT" && env.Error.Code != "TRANSPORT_ERROR" {
		t.Errorf("code = %q", env.Error.Code)
	}
}

func TestHTTPToWS(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://ha.local:8123", "ws://ha.local:8123"},
		{"https://ha.local", "wss://ha.local"},
		{"ws://already", "ws://already"},
		{"ha.local:8123", "ws://ha.local:8123"},
	}
	for _, tt := range tests {
		if got := httpToWS(tt.in); got != tt.want {
			t.Errorf("httpToWS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
