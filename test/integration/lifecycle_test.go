package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/deployq/deployq/pkg/api"
)

// TestDeploymentLifecycle drives a full queue cycle over HTTP:
// schedule three versions, deploy the newest, watch the older ones get
// skipped, then roll back to the previous release.
func TestDeploymentLifecycle(t *testing.T) {
	token := testEnv.mintToken(t, "acme")
	name := "lifecycle-svc"

	var rows []api.Deployment
	for _, version := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		resp, body := doRequest(t, "POST", "/v1/deployments", token, createRequest(name, version))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: expected 201, got %d: %s", version, resp.StatusCode, body)
		}
		rows = append(rows, decodeDeployment(t, body))
	}

	// Deploy 1.2.0.
	latest := rows[2]
	for _, status := range []api.Status{api.StatusInProgress, api.StatusDeployed} {
		resp, body := doRequest(t, "PATCH", "/v1/deployments/"+latest.ID, token,
			map[string]string{"status": string(status)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d: %s", status, resp.StatusCode, body)
		}
	}

	// The older scheduled rows are skipped in the same operation.
	for _, old := range rows[:2] {
		resp, body := doRequest(t, "GET", "/v1/deployments/"+old.ID, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get: expected 200, got %d", resp.StatusCode)
		}
		if d := decodeDeployment(t, body); d.Status != api.StatusSkipped {
			t.Errorf("version %s: expected skipped, got %s", d.Version, d.Status)
		}
	}

	// current reflects the deployed row.
	resp, body := doRequest(t, "GET", taxonomyPath("/v1/deployments/current", name), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if d := decodeDeployment(t, body); d.ID != latest.ID {
		t.Errorf("expected current %s, got %s", latest.ID, d.ID)
	}

	// Deploy 2.0.0 on top, then roll back to 1.2.0.
	resp, body = doRequest(t, "POST", "/v1/deployments", token, createRequest(name, "2.0.0"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create 2.0.0: expected 201, got %d", resp.StatusCode)
	}
	next := decodeDeployment(t, body)
	for _, status := range []api.Status{api.StatusInProgress, api.StatusDeployed} {
		resp, body = doRequest(t, "PATCH", "/v1/deployments/"+next.ID, token,
			map[string]string{"status": string(status)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition 2.0.0 to %s: expected 200, got %d: %s", status, resp.StatusCode, body)
		}
	}

	resp, body = doRequest(t, "POST", taxonomyPath("/v1/deployments/rollback", name), token,
		&api.RollbackRequest{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rollback: expected 201, got %d: %s", resp.StatusCode, body)
	}
	rb := decodeDeployment(t, body)
	if rb.Version != "1.2.0" {
		t.Errorf("expected rollback to 1.2.0, got %s", rb.Version)
	}
	if rb.Trigger != api.TriggerRollback || rb.Status != api.StatusScheduled {
		t.Errorf("unexpected rollback row state %s/%s", rb.Status, rb.Trigger)
	}
	if rb.SourceDeploymentID == nil || *rb.SourceDeploymentID != latest.ID {
		t.Errorf("expected source %s, got %v", latest.ID, rb.SourceDeploymentID)
	}

	// History lists every row of the taxonomy, newest first.
	resp, body = doRequest(t, "GET", taxonomyPath("/v1/deployments/history", name), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", resp.StatusCode)
	}
	var history struct {
		Deployments []api.Deployment `json:"deployments"`
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshaling history: %v", err)
	}
	if len(history.Deployments) != 5 {
		t.Errorf("expected 5 history rows, got %d", len(history.Deployments))
	}
	if history.Deployments[0].ID != rb.ID {
		t.Errorf("expected rollback row first, got %s", history.Deployments[0].ID)
	}
}

// TestCurrentStatusShortcut exercises the taxonomy-addressed status
// update that pipeline agents use when they do not track row ids.
func TestCurrentStatusShortcut(t *testing.T) {
	token := testEnv.mintToken(t, "acme")
	name := "shortcut-svc"

	resp, body := doRequest(t, "POST", "/v1/deployments", token, createRequest(name, "1.0.0"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeDeployment(t, body)

	resp, body = doRequest(t, "PATCH", taxonomyPath("/v1/deployments/current/status", name), token,
		map[string]string{"status": "in_progress"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if d := decodeDeployment(t, body); d.ID != created.ID || d.Status != api.StatusInProgress {
		t.Errorf("unexpected row %s/%s", d.ID, d.Status)
	}
}
