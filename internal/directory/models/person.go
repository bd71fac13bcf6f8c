package models

import (
	"fmt"
	"time"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// Category classifies an enrolled person.
type Category string

const (
	CategoryResident Category = "resident"
	CategoryVisitor  Category = "visitor"
	CategoryStaff    Category = "staff"
	CategoryGuest    Category = "guest"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryResident, CategoryVisitor, CategoryStaff, CategoryGuest:
		return true
	}
	return false
}

// Status is the person lifecycle state. Persons are never hard-deleted;
// deactivation preserves referential integrity for historical entry events.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Relationship is one edge from a person to a related person. Edges are a
// flat list keyed by (person, related, type), never an object graph. The
// related reference is nullable: when a related record is retired the edge
// keeps its type and loses its target instead of cascading away.
type Relationship struct {
	RelatedID *id.PersonID `json:"related_id"`
	Type      string       `json:"type"`
}

// Person is the aggregate root of the directory.
//
// Invariants:
//   - Version starts at 0 at creation and increases by exactly 1 on every
//     successful mutation; it is never decremented or reused.
//   - Status transitions: active ⇄ deactivated only, through the directory
//     service, each transition audited.
//   - Every successful mutation is written atomically with exactly one
//     audit record.
type Person struct {
	ID             id.PersonID    `json:"id"`
	FullName       string         `json:"full_name"`
	Alias          string         `json:"alias,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Email          string         `json:"email,omitempty"`
	IdentityNumber string         `json:"identity_number,omitempty"`
	Address        string         `json:"address,omitempty"`
	Category       Category       `json:"category"`
	Status         Status         `json:"status"`
	Version        int64          `json:"version"`
	Relationships  []Relationship `json:"relationships,omitempty"`
	Photos         []string       `json:"photos,omitempty"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (p *Person) IsActive() bool {
	return p.Status == StatusActive
}

// Clone returns a deep copy so stores can hand out snapshots.
func (p *Person) Clone() *Person {
	out := *p
	if p.Relationships != nil {
		out.Relationships = make([]Relationship, len(p.Relationships))
		copy(out.Relationships, p.Relationships)
	}
	if p.Photos != nil {
		out.Photos = make([]string, len(p.Photos))
		copy(out.Photos, p.Photos)
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		out.VerifiedAt = &t
	}
	return &out
}

// CanDeactivate checks the active → deactivated transition.
func (p *Person) CanDeactivate() error {
	if p.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "person is already deactivated")
	}
	return nil
}

// ApplyDeactivation transitions the person to deactivated.
// Call CanDeactivate first to validate the transition.
func (p *Person) ApplyDeactivation(now time.Time) {
	p.Status = StatusDeactivated
	p.UpdatedAt = now
}

// CanReactivate checks the deactivated → active transition.
func (p *Person) CanReactivate() error {
	if p.Status != StatusDeactivated {
		return dErrors.New(dErrors.CodeInvariantViolation, "person is already active")
	}
	return nil
}

// ApplyReactivation transitions the person back to active.
func (p *Person) ApplyReactivation(now time.Time) {
	p.Status = StatusActive
	p.UpdatedAt = now
}

// Draft carries enrollment input. ID is optional; the directory issues one
// when absent.
type Draft struct {
	ID             string   `json:"id,omitempty"`
	FullName       string   `json:"full_name"`
	Alias          string   `json:"alias,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	IdentityNumber string   `json:"identity_number,omitempty"`
	Address        string   `json:"address,omitempty"`
	Category       Category `json:"category"`
	Photos         []string `json:"photos,omitempty"`
}

// NewPerson validates a draft and builds a Person at version 0.
func NewPerson(personID id.PersonID, draft Draft, now time.Time) (*Person, error) {
	if draft.FullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if !draft.Category.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown category %q", draft.Category))
	}
	return &Person{
		ID:             personID,
		FullName:       draft.FullName,
		Alias:          draft.Alias,
		Phone:          draft.Phone,
		Email:          draft.Email,
		IdentityNumber: draft.IdentityNumber,
		Address:        draft.Address,
		Category:       draft.Category,
		Status:         StatusActive,
		Version:        0,
		Photos:         draft.Photos,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
