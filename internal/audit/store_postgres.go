package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "palisade/pkg/domain"
	txcontext "palisade/pkg/platform/tx"
)

// PostgresStore persists audit records. When the context carries a SQL
// transaction (pkg/platform/tx), Append writes through it so the audit row
// commits or aborts together with the person mutation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one audit record. Insert-only; there is no update path.
func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	diffJSON, err := json.Marshal(record.Diff)
	if err != nil {
		return fmt.Errorf("marshal audit diff: %w", err)
	}

	query := `
		INSERT INTO audit_records (id, person_id, action, old_version, new_version, diff, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.PersonID),
		string(record.Action),
		record.OldVersion,
		record.NewVersion,
		diffJSON,
		record.ActorID,
		record.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListByPerson returns records for one person in append order.
func (s *PostgresStore) ListByPerson(ctx context.Context, personID id.PersonID) ([]Record, error) {
	query := `
		SELECT id, person_id, action, old_version, new_version, diff, actor_id, at
		FROM audit_records
		WHERE person_id = $1
		ORDER BY at, new_version
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record   Record
			recordID uuid.UUID
			person   uuid.UUID
			action   string
			diffJSON []byte
		)
		if err := rows.Scan(&recordID, &person, &action, &record.OldVersion, &record.NewVersion, &diffJSON, &record.ActorID, &record.At); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.ID = id.AuditRecordID(recordID)
		record.PersonID = id.PersonID(person)
		record.Action = Action(action)
		if len(diffJSON) > 0 {
			if err := json.Unmarshal(diffJSON, &record.Diff); err != nil {
				return nil, fmt.Errorf("unmarshal audit diff: %w", err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
