package audit

import (
	"time"

	id "palisade/pkg/domain"
)

// Action classifies a person-record mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	// ActionDeleted is part of the on-disk contract for historical data.
	// The directory never hard-deletes persons, so new records do not carry
	// it; legacy importers may.
	ActionDeleted Action = "deleted"
)

// FieldChange captures one changed field as before/after values.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Record is an immutable audit trail entry for a person mutation.
//
// Invariants:
//   - NewVersion = OldVersion + 1 for updates; creation has OldVersion 0 and
//     NewVersion 0 (the person starts at version 0).
//   - A record is written in the same atomic unit as the mutation it
//     describes; one never exists without the other.
//   - Records are never mutated or deleted after Append.
type Record struct {
	ID         id.AuditRecordID       `json:"id"`
	PersonID   id.PersonID            `json:"person_id"`
	Action     Action                 `json:"action"`
	OldVersion int64                  `json:"old_version"`
	NewVersion int64                  `json:"new_version"`
	Diff       map[string]FieldChange `json:"diff"`
	ActorID    string                 `json:"actor_id,omitempty"`
	At         time.Time              `json:"at"`
}
