package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// pointProbe rewires one built-in probe at an httptest server's port.
func pointProbe(t *testing.T, d *Discovery, serviceType string, srv *httptest.Server) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	spec := d.probes[serviceType]
	spec.port = port
	spec.useSSL = u.Scheme == "https"
	d.probes[serviceType] = spec
}

func TestDiscovery_IdentifiesRadarrFromStatusBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"appName": "Radarr", "version": "5.4.6"}`))
	}))
	defer srv.Close()

	d := NewDiscovery(time.Second)
	pointProbe(t, d, TypeRadarr, srv)

	results := d.Discover(context.Background(), "127.0.0.1", TypeRadarr)
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	r := results[0]
	if !r.Detected || r.Confidence != ConfidenceHigh {
		t.Errorf("detected=%v confidence=%q", r.Detected, r.Confidence)
	}
	if r.BaseURL == "" || r.Evidence == "" {
		t.Errorf("missing base URL or evidence: %+v", r)
	}
}

func TestDiscovery_AuthChallengeIsMediumConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDiscovery(time.Second)
	pointProbe(t, d, TypeSonarr, srv)

	results := d.Discover(context.Background(), "127.0.0.1", TypeSonarr)
	if r := results[0]; !r.Detected || r.Confidence != ConfidenceMedium {
		t.Errorf("detected=%v confidence=%q", r.Detected, r.Confidence)
	}
}

func TestDiscovery_UnreachableHostIsNotDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	d := NewDiscovery(200 * time.Millisecond)
	pointProbe(t, d, TypeDocker, srv)
	srv.Close()

	results := d.Discover(context.Background(), "127.0.0.1", TypeDocker)
	if r := results[0]; r.Detected || r.Confidence != ConfidenceNone {
		t.Errorf("detected=%v confidence=%q, want not detected", r.Detected, r.Confidence)
	}
}

func TestDiscovery_SortsStrongestFirst(t *testing.T) {
	high := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": "4.3.2"}`))
	}))
	defer high.Close()
	medium := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer medium.Close()

	d := NewDiscovery(time.Second)
	pointProbe(t, d, TypeSABnzbd, high)
	pointProbe(t, d, TypeRadarr, medium)

	results := d.Discover(context.Background(), "127.0.0.1", TypeRadarr, TypeSABnzbd, TypeDocker)
	if results[0].ServiceType != TypeSABnzbd {
		t.Errorf("first = %+v, want sabnzbd high confidence", results[0])
	}
	if results[1].ServiceType != TypeRadarr {
		t.Errorf("second = %+v, want radarr medium confidence", results[1])
	}
	if results[2].Detected {
		t.Errorf("last = %+v, want undetected docker", results[2])
	}
}
