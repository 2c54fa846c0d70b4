package api

// ValidateCreate checks a CreateRequest for validity. It returns an
// *APIError describing the first validation failure, or nil.
func ValidateCreate(req *CreateRequest) *APIError {
	if req.Name == "" {
		return NewInvalidRequestError("name", "name is required")
	}
	if req.Version == "" {
		return NewInvalidRequestError("version", "version is required")
	}
	if !req.Provider.Valid() {
		return NewInvalidRequestError("provider", "provider must be gcp, aws, or azure")
	}
	if req.CloudAccountID == "" {
		return NewInvalidRequestError("cloud_account_id", "cloud_account_id is required")
	}
	if req.Region == "" {
		return NewInvalidRequestError("region", "region is required")
	}
	if req.Environment == "" {
		return NewInvalidRequestError("environment", "environment is required")
	}
	if !req.Type.Valid() {
		return NewInvalidRequestError("type", "type must be k8s, terraform, or data_pipeline")
	}
	switch req.Trigger {
	case "", TriggerManual, TriggerAuto:
		// Rollback rows are only created by the rollback operation.
	default:
		return NewInvalidRequestError("trigger", "trigger must be manual or auto")
	}
	return nil
}

// ValidateUpdate checks an UpdateRequest. Only status, notes, and
// deployment_uri are mutable; anything else never reaches this type.
func ValidateUpdate(req *UpdateRequest) *APIError {
	if req.Empty() {
		return NewInvalidRequestError("", "no fields to update")
	}
	if req.Status != nil && !req.Status.Valid() {
		return NewInvalidRequestError("status", "unknown status "+string(*req.Status))
	}
	return nil
}

// ValidateTaxonomy checks that the required identity dimensions of a
// taxonomy-scoped operation are present. A missing dimension is an
// invalid transition per the engine contract, not a generic bad
// request.
func ValidateTaxonomy(t Taxonomy) *APIError {
	switch {
	case t.Organisation == "":
		return NewInvalidTransitionError("taxonomy requires an organisation")
	case t.Name == "":
		return NewInvalidTransitionError("taxonomy requires a name")
	case !t.Provider.Valid():
		return NewInvalidTransitionError("taxonomy requires a valid provider")
	case t.CloudAccountID == "":
		return NewInvalidTransitionError("taxonomy requires a cloud_account_id")
	case t.Region == "":
		return NewInvalidTransitionError("taxonomy requires a region")
	}
	return nil
}
