package models

import (
	"fmt"
	"time"

	"palisade/internal/audit"
	dErrors "palisade/pkg/domain-errors"
)

// Patch describes a partial update. Nil pointers leave fields untouched.
// Relationship edits are expressed as put/drop sets over the edge list.
type Patch struct {
	FullName         *string        `json:"full_name,omitempty"`
	Alias            *string        `json:"alias,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	Email            *string        `json:"email,omitempty"`
	IdentityNumber   *string        `json:"identity_number,omitempty"`
	Address          *string        `json:"address,omitempty"`
	Category         *Category      `json:"category,omitempty"`
	Photos           *[]string      `json:"photos,omitempty"`
	MarkVerified     bool           `json:"mark_verified,omitempty"`
	PutRelationships []Relationship `json:"put_relationships,omitempty"`
	DropRelationship []Relationship `json:"drop_relationships,omitempty"`
}

// Validate rejects patches that would break aggregate invariants.
func (patch Patch) Validate() error {
	if patch.FullName != nil && *patch.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name cannot be cleared")
	}
	if patch.Category != nil && !patch.Category.Valid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown category %q", *patch.Category))
	}
	for _, rel := range patch.PutRelationships {
		if rel.Type == "" {
			return dErrors.New(dErrors.CodeValidation, "relationship type is required")
		}
	}
	return nil
}

// Apply mutates the person in place and returns the audit diff of changed
// fields. Version bookkeeping belongs to the caller.
func (patch Patch) Apply(p *Person, now time.Time) map[string]audit.FieldChange {
	diff := make(map[string]audit.FieldChange)

	setString := func(field string, target *string, value *string) {
		if value != nil && *target != *value {
			diff[field] = audit.FieldChange{Old: *target, New: *value}
			*target = *value
		}
	}

	setString("full_name", &p.FullName, patch.FullName)
	setString("alias", &p.Alias, patch.Alias)
	setString("phone", &p.Phone, patch.Phone)
	setString("email", &p.Email, patch.Email)
	setString("identity_number", &p.IdentityNumber, patch.IdentityNumber)
	setString("address", &p.Address, patch.Address)

	if patch.Category != nil && p.Category != *patch.Category {
		diff["category"] = audit.FieldChange{Old: string(p.Category), New: string(*patch.Category)}
		p.Category = *patch.Category
	}
	if patch.Photos != nil {
		diff["photos"] = audit.FieldChange{
			Old: fmt.Sprintf("%d photos", len(p.Photos)),
			New: fmt.Sprintf("%d photos", len(*patch.Photos)),
		}
		p.Photos = append([]string(nil), (*patch.Photos)...)
	}
	if patch.MarkVerified {
		old := ""
		if p.VerifiedAt != nil {
			old = p.VerifiedAt.UTC().Format(time.RFC3339)
		}
		diff["verified_at"] = audit.FieldChange{Old: old, New: now.UTC().Format(time.RFC3339)}
		verifiedAt := now
		p.VerifiedAt = &verifiedAt
	}

	if len(patch.PutRelationships) > 0 || len(patch.DropRelationship) > 0 {
		before := len(p.Relationships)
		for _, drop := range patch.DropRelationship {
			p.Relationships = removeEdge(p.Relationships, drop)
		}
		for _, put := range patch.PutRelationships {
			if !hasEdge(p.Relationships, put) {
				p.Relationships = append(p.Relationships, put)
			}
		}
		diff["relationships"] = audit.FieldChange{
			Old: fmt.Sprintf("%d edges", before),
			New: fmt.Sprintf("%d edges", len(p.Relationships)),
		}
	}

	if len(diff) > 0 {
		p.UpdatedAt = now
	}
	return diff
}

func sameEdge(a, b Relationship) bool {
	if a.Type != b.Type {
		return false
	}
	if a.RelatedID == nil || b.RelatedID == nil {
		return a.RelatedID == b.RelatedID
	}
	return *a.RelatedID == *b.RelatedID
}

func hasEdge(edges []Relationship, edge Relationship) bool {
	for _, e := range edges {
		if sameEdge(e, edge) {
			return true
		}
	}
	return false
}

func removeEdge(edges []Relationship, edge Relationship) []Relationship {
	out := edges[:0]
	for _, e := range edges {
		if !sameEdge(e, edge) {
			out = append(out, e)
		}
	}
	return out
}
