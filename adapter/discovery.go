package adapter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TOoSmOotH/homie-sub000/logger"
)

// Confidence grades how sure a discovery probe is about its match.
type Confidence string

const (
	// ConfidenceHigh means the probe saw a service-identifying response body.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium means the port answered with the expected auth
	// challenge but could not be fingerprinted further.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceNone means nothing was detected.
	ConfidenceNone Confidence = "none"
)

// DetectionResult is one service family's probe outcome against a host.
type DetectionResult struct {
	ServiceType string     `json:"serviceType"`
	Detected    bool       `json:"detected"`
	Confidence  Confidence `json:"confidence"`
	BaseURL     string     `json:"baseUrl,omitempty"`
	Evidence    string     `json:"evidence,omitempty"`
}

// probeSpec describes how to fingerprint one service family.
type probeSpec struct {
	port     int
	useSSL   bool
	path     string
	classify func(status int, body []byte) (Confidence, string)
}

// Discovery fingerprints hosts for known service families by probing each
// family's conventional port with a read-only request. Probes never send
// credentials; an auth challenge is itself a signal.
type Discovery struct {
	client *http.Client
	probes map[string]probeSpec
	log    *logger.Logger
}

// NewDiscovery creates a Discovery with the built-in probes. Probe TLS is
// always unverified since lab services ship self-signed certificates.
func NewDiscovery(timeout time.Duration) *Discovery {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discovery{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
		probes: builtinProbes(),
		log:    logger.Get("adapter.discovery"),
	}
}

// Discover probes host for every known service family (or only the given
// types) concurrently. Results are sorted by confidence, strongest first.
func (d *Discovery) Discover(ctx context.Context, host string, types ...string) []DetectionResult {
	if len(types) == 0 {
		for t := range d.probes {
			types = append(types, t)
		}
	}

	results := make([]DetectionResult, len(types))
	var wg sync.WaitGroup
	for i, serviceType := range types {
		wg.Add(1)
		go func(i int, serviceType string) {
			defer wg.Done()
			results[i] = d.probe(ctx, host, serviceType)
		}(i, serviceType)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return confidenceRank(results[i].Confidence) > confidenceRank(results[j].Confidence)
	})
	return results
}

// probe runs a single fingerprint request. Any transport failure means
// "not detected", never an error: discovery is advisory.
func (d *Discovery) probe(ctx context.Context, host, serviceType string) DetectionResult {
	result := DetectionResult{ServiceType: serviceType, Confidence: ConfidenceNone}

	spec, ok := d.probes[serviceType]
	if !ok {
		return result
	}

	scheme := "http"
	if spec.useSSL {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s:%d", scheme, host, spec.port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+spec.path, nil)
	if err != nil {
		return result
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("probe failed", map[string]interface{}{
			logger.FieldServiceType: serviceType,
			logger.FieldEndpoint:    baseURL,
			logger.FieldError:       err.Error(),
		})
		return result
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	confidence, evidence := spec.classify(resp.StatusCode, body)
	if confidence == ConfidenceNone {
		return result
	}
	return DetectionResult{
		ServiceType: serviceType,
		Detected:    true,
		Confidence:  confidence,
		BaseURL:     baseURL,
		Evidence:    evidence,
	}
}

func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

func builtinProbes() map[string]probeSpec {
	return map[string]probeSpec{
		TypeRadarr: {
			port: 7878, path: "/api/v3/system/status",
			classify: arrClassifier("Radarr"),
		},
		TypeSonarr: {
			port: 8989, path: "/api/v3/system/status",
			classify: arrClassifier("Sonarr"),
		},
		TypeSABnzbd: {
			port: 8080, path: "/api?mode=version&output=json",
			classify: func(status int, body []byte) (Confidence, string) {
				if status != http.StatusOK {
					return ConfidenceNone, ""
				}
				var doc struct {
					Version string `json:"version"`
				}
				if json.Unmarshal(body, &doc) == nil && doc.Version != "" {
					return ConfidenceHigh, "version endpoint answered " + doc.Version
				}
				return ConfidenceNone, ""
			},
		},
		TypeProxmox: {
			port: 8006, useSSL: true, path: "/api2/json/version",
			classify: func(status int, body []byte) (Confidence, string) {
				switch {
				case status == http.StatusOK && strings.Contains(string(body), `"version"`):
					return ConfidenceHigh, "version endpoint answered"
				case status == http.StatusUnauthorized:
					return ConfidenceMedium, "API challenged for authentication on the conventional port"
				default:
					return ConfidenceNone, ""
				}
			},
		},
		TypeDocker: {
			port: 2375, path: "/_ping",
			classify: func(status int, body []byte) (Confidence, string) {
				if status == http.StatusOK && strings.TrimSpace(string(body)) == "OK" {
					return ConfidenceHigh, "engine ping answered OK"
				}
				return ConfidenceNone, ""
			},
		},
	}
}

// arrClassifier fingerprints Radarr and Sonarr, which share API shape. An
// unauthenticated status call normally earns a 401; an exposed one returns
// the status document with an appName field.
func arrClassifier(appName string) func(int, []byte) (Confidence, string) {
	return func(status int, body []byte) (Confidence, string) {
		switch {
		case status == http.StatusOK:
			var doc struct {
				AppName string `json:"appName"`
				Version string `json:"version"`
			}
			if json.Unmarshal(body, &doc) == nil {
				if strings.EqualFold(doc.AppName, appName) {
					return ConfidenceHigh, "status endpoint identified " + doc.AppName
				}
				if doc.Version != "" {
					return ConfidenceMedium, "compatible status endpoint answered"
				}
			}
			return ConfidenceNone, ""
		case status == http.StatusUnauthorized:
			return ConfidenceMedium, "API challenged for authentication on the conventional port"
		default:
			return ConfidenceNone, ""
		}
	}
}
