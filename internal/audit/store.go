package audit

import (
	"context"

	id "palisade/pkg/domain"
)

// Store persists audit records. Append is the only write operation; no
// implementation ever performs a read-modify-write against existing records.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByPerson(ctx context.Context, personID id.PersonID) ([]Record, error)
}
