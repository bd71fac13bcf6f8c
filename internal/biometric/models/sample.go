package models

import (
	"fmt"
	"time"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// EmbeddingDim is the fixed face embedding length. The external extraction
// service produces 512-dimension vectors; the storage contract is bit-exact.
const EmbeddingDim = 512

// Kind distinguishes the two sample families.
type Kind string

const (
	KindEmbedding Kind = "embedding"
	KindTemplate  Kind = "template"
)

// Sample is one biometric sample owned by exactly one person.
//
// Invariants:
//   - Embedding samples carry exactly EmbeddingDim values.
//   - Soft-deleted samples are excluded from matching but retained for
//     audit; physical deletion never occurs while the owning person exists.
type Sample struct {
	ID         id.SampleID `json:"id"`
	PersonID   id.PersonID `json:"person_id"`
	Kind       Kind        `json:"kind"`
	Vector     []float32   `json:"vector,omitempty"`
	Template   []byte      `json:"template,omitempty"`
	Position   string      `json:"position,omitempty"`
	Quality    float64     `json:"quality"`
	IsDeleted  bool        `json:"is_deleted"`
	EnrolledAt time.Time   `json:"enrolled_at"`
}

// Clone returns a deep copy so match snapshots cannot observe later writes.
func (s *Sample) Clone() *Sample {
	out := *s
	if s.Vector != nil {
		out.Vector = make([]float32, len(s.Vector))
		copy(out.Vector, s.Vector)
	}
	if s.Template != nil {
		out.Template = make([]byte, len(s.Template))
		copy(out.Template, s.Template)
	}
	return &out
}

// ValidateEmbedding enforces the fixed dimension.
func ValidateEmbedding(vector []float32) error {
	if len(vector) != EmbeddingDim {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("embedding must have %d dimensions, got %d", EmbeddingDim, len(vector)))
	}
	return nil
}

// Candidate is one ranked match result.
type Candidate struct {
	PersonID id.PersonID `json:"person_id"`
	SampleID id.SampleID `json:"sample_id"`
	Distance float64     `json:"distance"`
}

// MatchResult is the outcome of a match operation. Unmatched is a normal
// outcome returned as data, not an error; manual fallback is an expected
// path.
type MatchResult struct {
	Candidates []Candidate `json:"candidates"`
	Unmatched  bool        `json:"unmatched"`
}
