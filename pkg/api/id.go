package api

import "github.com/google/uuid"

// NewDeploymentID generates an opaque unique deployment identifier.
func NewDeploymentID() string {
	return uuid.NewString()
}

// ValidateDeploymentID checks whether the given string is a
// well-formed deployment ID.
func ValidateDeploymentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
