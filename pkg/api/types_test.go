package api

import "testing"

func strPtr(s string) *string { return &s }

func TestTaxonomyEqual(t *testing.T) {
	base := Taxonomy{
		Organisation:   "acme",
		Name:           "checkout",
		Provider:       ProviderGCP,
		CloudAccountID: "proj-1",
		Region:         "europe-west1",
	}

	tests := []struct {
		name  string
		a, b  Taxonomy
		equal bool
	}{
		{"identical without cell", base, base, true},
		{
			"different name",
			base,
			Taxonomy{Organisation: "acme", Name: "billing", Provider: ProviderGCP,
				CloudAccountID: "proj-1", Region: "europe-west1"},
			false,
		},
		{
			"different organisation",
			base,
			Taxonomy{Organisation: "globex", Name: "checkout", Provider: ProviderGCP,
				CloudAccountID: "proj-1", Region: "europe-west1"},
			false,
		},
		{
			"same concrete cell",
			withCell(base, "cell-a"),
			withCell(base, "cell-a"),
			true,
		},
		{
			"different cells",
			withCell(base, "cell-a"),
			withCell(base, "cell-b"),
			false,
		},
		{
			"absent cell vs concrete cell",
			base,
			withCell(base, "cell-a"),
			false,
		},
		{
			"absent cell vs empty string cell",
			base,
			withCell(base, ""),
			false,
		},
		{
			"empty string cells match",
			withCell(base, ""),
			withCell(base, ""),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal = %v, want %v", got, tt.equal)
			}
			if got := tt.b.Equal(tt.a); got != tt.equal {
				t.Errorf("Equal not symmetric: %v, want %v", got, tt.equal)
			}
		})
	}
}

func withCell(t Taxonomy, cell string) Taxonomy {
	t.Cell = &cell
	return t
}

func TestDeploymentTaxonomy(t *testing.T) {
	d := &Deployment{
		Organisation:   "acme",
		Name:           "checkout",
		Provider:       ProviderAWS,
		CloudAccountID: "123456789012",
		Region:         "eu-west-1",
		Cell:           strPtr("cell-a"),
	}
	tax := d.Taxonomy()
	if tax.Organisation != "acme" || tax.Name != "checkout" || tax.Provider != ProviderAWS {
		t.Errorf("unexpected taxonomy %+v", tax)
	}
	if tax.Cell == nil || *tax.Cell != "cell-a" {
		t.Errorf("expected cell-a, got %v", tax.Cell)
	}
}

func TestUpdateRequestEmpty(t *testing.T) {
	if !(UpdateRequest{}).Empty() {
		t.Error("zero UpdateRequest should be empty")
	}
	status := StatusInProgress
	if (UpdateRequest{Status: &status}).Empty() {
		t.Error("UpdateRequest with status should not be empty")
	}
	if (UpdateRequest{Notes: strPtr("")}).Empty() {
		t.Error("UpdateRequest with notes should not be empty")
	}
}
