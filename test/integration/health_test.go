package integration

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deployq/deployq/pkg/observability"
)

// The management surface runs on its own listener in production; here
// it gets its own test server since it carries no authentication.
func startManagement(ready func() error) *httptest.Server {
	return httptest.NewServer(observability.ManagementHandler(ready))
}

func TestManagementEndpoints(t *testing.T) {
	srv := startManagement(func() error { return nil })
	defer srv.Close()

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Errorf("%s: decoding body: %v", path, err)
		}
		resp.Body.Close()
	}
}

func TestReadinessReflectsStore(t *testing.T) {
	srv := startManagement(func() error { return errors.New("connection refused") })
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMetricsExposition(t *testing.T) {
	srv := startManagement(func() error { return nil })
	defer srv.Close()

	// Label vectors only appear in the exposition once observed.
	observability.RequestsTotal.WithLabelValues("GET", "/v1/deployments", "2xx").Inc()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(data), "deployq_") {
		t.Error("expected deployq metrics in exposition")
	}
}
