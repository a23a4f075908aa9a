package envelope

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

func TestOK_WireShape(t *testing.T) {
	env := OK(map[string]any{"ok": true}, 125*time.Millisecond,
		WithServiceType("radarr"),
		WithOperation("system.status"),
	)

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)

	// Field names are a wire contract.
	for _, field := range []string{
		`"success":true`,
		`"data":{"ok":true}`,
		`"timestamp"`,
		`"correlationId"`,
		`"serviceType":"radarr"`,
		`"operation":"system.status"`,
		`"duration":125`,
	} {
		if !strings.Contains(body, field) {
			t.Errorf("envelope missing %s in %s", field, body)
		}
	}
	if strings.Contains(body, `"error"`) {
		t.Error("success envelope must omit error")
	}
}

func TestFail_WireShape(t *testing.T) {
	env := Fail(errors.Remote("HTTP 503", 503), 10*time.Millisecond)

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)

	for _, field := range []string{
		`"success":false`,
		`"code":"REMOTE_ERROR"`,
		`"message":"HTTP 503"`,
		`"httpStatus":503`,
		`"retryable":true`,
	} {
		if !strings.Contains(body, field) {
			t.Errorf("envelope missing %s in %s", field, body)
		}
	}
	if strings.Contains(body, `"data"`) {
		t.Error("error envelope must omit data")
	}
}

func TestFail_WrapsPlainErrors(t *testing.T) {
	env := Fail(stderrors.New("socket hangup"), 0)

	if env.Error == nil {
		t.Fatal("error body missing")
	}
	if env.Error.Code != string(errors.CodeTransport) {
		t.Errorf("code = %s", env.Error.Code)
	}
	if env.Error.Message == "" {
		t.Error("message must be human-readable, not empty")
	}
}

func TestCorrelationID_UniquePerEnvelope(t *testing.T) {
	a := OK(nil, 0)
	b := OK(nil, 0)

	if a.Metadata.CorrelationID == "" {
		t.Fatal("correlation id not set")
	}
	if a.Metadata.CorrelationID == b.Metadata.CorrelationID {
		t.Error("correlation ids should be unique")
	}
}

func TestWithCorrelationID_Propagates(t *testing.T) {
	env := OK(nil, 0, WithCorrelationID("upstream-123"))
	if env.Metadata.CorrelationID != "upstream-123" {
		t.Errorf("correlationId = %s", env.Metadata.CorrelationID)
	}
}

func TestOptionalMetadataSections(t *testing.T) {
	env := OK(nil, 0,
		WithPagination(&Pagination{Page: 2, PageSize: 50, TotalItems: 120, TotalPages: 3}),
		WithRateLimit(&RateLimit{Limit: 60, Remaining: 12}),
		WithCache(&Cache{Hit: true, Key: "radarr:movies"}),
	)

	raw, _ := json.Marshal(env)
	body := string(raw)
	for _, field := range []string{`"pagination"`, `"rateLimit"`, `"cache"`, `"pageSize":50`} {
		if !strings.Contains(body, field) {
			t.Errorf("missing %s", field)
		}
	}
}
