package api

import (
	"fmt"
	"strings"
	"time"
)

// NewRollback builds the replacement row for a rollback of ref. All
// identity and descriptive fields are copied; the new row is scheduled,
// carries trigger=rollback, and records its lineage: the reference
// row's id as source and, when given, the failing row's id as
// rollback_from. Lineage references are immutable after this point.
//
// Both storage backends use this builder inside their rollback
// transaction so the copy rule cannot drift between them.
func NewRollback(ref *Deployment, rollbackFromID string, now time.Time) *Deployment {
	d := *ref
	d.ID = NewDeploymentID()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Status = StatusScheduled
	d.Trigger = TriggerRollback

	sourceID := ref.ID
	d.SourceDeploymentID = &sourceID
	d.RollbackFromDeploymentID = nil
	if rollbackFromID != "" {
		fromID := rollbackFromID
		d.RollbackFromDeploymentID = &fromID
	}

	d.Notes = appendRollbackNote(ref.Notes, ref.Version)
	return &d
}

// appendRollbackNote appends the rollback marker to any existing notes.
func appendRollbackNote(existing *string, version string) *string {
	note := fmt.Sprintf("Rollback to version %s", version)
	if existing != nil && strings.TrimSpace(*existing) != "" {
		note = strings.TrimSpace(*existing) + "\n" + note
	}
	return &note
}
