package dispatch

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/TOoSmOotH/homie-sub000/manifest"
	"github.com/TOoSmOotH/homie-sub000/store"
)

// startEngineStub serves a fake engine API on a unix socket.
func startEngineStub(t *testing.T, handler http.Handler) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets required")
	}

	socketPath := filepath.Join(t.TempDir(), "docker.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}

	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Close()
		os.Remove(socketPath)
	})
	return socketPath
}

func TestDockerTransport_ListsContainersOverUnixSocket(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	socketPath := startEngineStub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"Id": "abc123", "State": "running"}]`))
	}))

	mem := store.NewMemory()
	mem.Put(&store.Service{
		ID:     "engine",
		Type:   "docker",
		Config: map[string]any{},
		Manifest: &manifest.Manifest{
			ServiceType: "docker",
			Endpoints: map[string]manifest.EndpointDefinition{
				"containers": {
					Transport: manifest.TransportDocker,
					Path:      "/containers/json",
					Params:    map[string]string{"all": "{all}", "size": "{size}"},
				},
			},
		},
	})

	d := NewDispatcher(mem, socketPath, WithStatusWriter(mem))
	env := d.Execute(context.Background(), "engine", "containers", map[string]any{"all": true})

	if !env.Success {
		t.Fatalf("envelope = %+v", env.Error)
	}
	if gotPath != "/containers/json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery.Get("all") != "true" {
		t.Errorf("all = %q, want true", gotQuery.Get("all"))
	}
	if gotQuery.Has("size") {
		t.Error("unresolved param forwarded as a literal")
	}
	list, ok := env.Data.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("data = %v", env.Data)
	}
	if c := list[0].(map[string]any); c["Id"] != "abc123" {
		t.Errorf("container = %v", c)
	}

	svc, _ := mem.GetService(context.Background(), "engine")
	if svc.Status != store.StatusOnline {
		t.Errorf("status = %q, want online", svc.Status)
	}
}

func TestDockerTransport_VersionedInspectPathAllowed(t *testing.T) {
	socketPath := startEngineStub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Id": "abc123"}`))
	}))

	mem := store.NewMemory()
	mem.Put(&store.Service{
		ID:     "engine",
		Type:   "docker",
		Config: map[string]any{"containerId": "abc123"},
		Manifest: &manifest.Manifest{
			ServiceType: "docker",
			Endpoints: map[string]manifest.EndpointDefinition{
				"inspect": {Transport: manifest.TransportDocker, Path: "/v1.47/containers/{containerId}/json"},
			},
		},
	})

	d := NewDispatcher(mem, socketPath)
	env := d.Execute(context.Background(), "engine", "inspect", nil)
	if !env.Success {
		t.Fatalf("envelope = %+v", env.Error)
	}
}

func TestDockerTransport_UnreachableSocketMarksOffline(t *testing.T) {
	mem := store.NewMemory()
	mem.Put(&store.Service{
		ID:     "engine",
		Type:   "docker",
		Config: map[string]any{},
		Manifest: &manifest.Manifest{
			ServiceType: "docker",
			Endpoints: map[string]manifest.EndpointDefinition{
				"ping": {Transport: manifest.TransportDocker, Path: "/_ping"},
			},
		},
	})

	d := NewDispatcher(mem, filepath.Join(t.TempDir(), "missing.sock"), WithStatusWriter(mem))
	env := d.Execute(context.Background(), "engine", "ping", nil)

	if env.Success {
		t.Fatal("expected failure")
	}
	if env.Error.Code != "CONNECTION_FAILED" && env.Error.Code != "TRANSPORT_ERROR" {
		t.Errorf("code = %q", env.Error.Code)
	}

	svc, _ := mem.GetService(context.Background(), "engine")
	if svc.Status != store.StatusOffline {
		t.Errorf("status = %q, want offline", svc.Status)
	}
}
