package integration

import (
	"net/http"
	"testing"

	"github.com/deployq/deployq/pkg/api"
)

func TestRequestWithoutCredential(t *testing.T) {
	resp, body := doRequest(t, "GET", "/v1/deployments", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, body); apiErr.Type != api.ErrorTypeUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", apiErr.Type)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}
}

func TestRequestWithForgedToken(t *testing.T) {
	resp, _ := doRequest(t, "GET", "/v1/deployments", "forged.jwt.credential", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestOrganisationNotOnAllowList(t *testing.T) {
	token := testEnv.mintToken(t, "initech")

	resp, body := doRequest(t, "GET", "/v1/deployments", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", resp.StatusCode, body)
	}
	if apiErr := decodeAPIError(t, body); apiErr.Type != api.ErrorTypeForbidden {
		t.Errorf("expected forbidden, got %s", apiErr.Type)
	}
}

func TestPersonalCredentialPath(t *testing.T) {
	req, err := http.NewRequest("GET", testEnv.APIServer.URL+"/v1/deployments", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testPAT)
	req.Header.Set("X-Organisation", "acme")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPersonalCredentialRequiresOrganisationHeader(t *testing.T) {
	resp, _ := doRequest(t, "GET", "/v1/deployments", testPAT, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without organisation header, got %d", resp.StatusCode)
	}
}

func TestCrossTenantIsolation(t *testing.T) {
	acme := testEnv.mintToken(t, "acme")
	globex := testEnv.mintToken(t, "globex")

	resp, body := doRequest(t, "POST", "/v1/deployments", acme, createRequest("isolation-svc", "1.0.0"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeDeployment(t, body)

	// The other tenant sees not_found, never forbidden; existence must
	// not leak across organisations.
	resp, body = doRequest(t, "GET", "/v1/deployments/"+created.ID, globex, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}
	if apiErr := decodeAPIError(t, body); apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("expected not_found, got %s", apiErr.Type)
	}
}
