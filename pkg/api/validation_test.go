package api

import "testing"

func validCreate() *CreateRequest {
	return &CreateRequest{
		Name:           "checkout",
		Version:        "1.0.0",
		Provider:       ProviderGCP,
		CloudAccountID: "proj-1",
		Region:         "europe-west1",
		Environment:    "production",
		Type:           TypeK8s,
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateRequest)
		wantParam string
	}{
		{"valid", func(r *CreateRequest) {}, ""},
		{"valid with manual trigger", func(r *CreateRequest) { r.Trigger = TriggerManual }, ""},
		{"missing name", func(r *CreateRequest) { r.Name = "" }, "name"},
		{"missing version", func(r *CreateRequest) { r.Version = "" }, "version"},
		{"unknown provider", func(r *CreateRequest) { r.Provider = "digitalocean" }, "provider"},
		{"missing cloud account", func(r *CreateRequest) { r.CloudAccountID = "" }, "cloud_account_id"},
		{"missing region", func(r *CreateRequest) { r.Region = "" }, "region"},
		{"missing environment", func(r *CreateRequest) { r.Environment = "" }, "environment"},
		{"unknown type", func(r *CreateRequest) { r.Type = "lambda" }, "type"},
		{"rollback trigger rejected", func(r *CreateRequest) { r.Trigger = TriggerRollback }, "trigger"},
		{"unknown trigger", func(r *CreateRequest) { r.Trigger = "cron" }, "trigger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(req)
			err := ValidateCreate(req)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Type != ErrorTypeInvalidRequest {
				t.Errorf("expected invalid_request, got %s", err.Type)
			}
			if err.Param != tt.wantParam {
				t.Errorf("expected param %q, got %q", tt.wantParam, err.Param)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	if err := ValidateUpdate(&UpdateRequest{}); err == nil {
		t.Error("expected error for empty update")
	}

	bad := Status("bogus")
	if err := ValidateUpdate(&UpdateRequest{Status: &bad}); err == nil || err.Param != "status" {
		t.Errorf("expected status rejection, got %v", err)
	}

	good := StatusInProgress
	if err := ValidateUpdate(&UpdateRequest{Status: &good}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := ValidateUpdate(&UpdateRequest{Notes: strPtr("note")}); err != nil {
		t.Errorf("expected valid notes-only update, got %v", err)
	}
}

func TestValidateTaxonomy(t *testing.T) {
	valid := Taxonomy{
		Organisation:   "acme",
		Name:           "checkout",
		Provider:       ProviderGCP,
		CloudAccountID: "proj-1",
		Region:         "europe-west1",
	}
	if err := ValidateTaxonomy(valid); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	for _, tt := range []struct {
		name   string
		mutate func(*Taxonomy)
	}{
		{"organisation", func(x *Taxonomy) { x.Organisation = "" }},
		{"name", func(x *Taxonomy) { x.Name = "" }},
		{"provider", func(x *Taxonomy) { x.Provider = "" }},
		{"cloud_account_id", func(x *Taxonomy) { x.CloudAccountID = "" }},
		{"region", func(x *Taxonomy) { x.Region = "" }},
	} {
		t.Run("missing "+tt.name, func(t *testing.T) {
			tax := valid
			tt.mutate(&tax)
			err := ValidateTaxonomy(tax)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Type != ErrorTypeInvalidTransition {
				t.Errorf("expected invalid_transition, got %s", err.Type)
			}
		})
	}
}

func TestValidateDeploymentID(t *testing.T) {
	if !ValidateDeploymentID(NewDeploymentID()) {
		t.Error("generated ID should validate")
	}
	for _, bad := range []string{"", "not-a-uuid", "1234", "../../etc/passwd"} {
		if ValidateDeploymentID(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
