package sample

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"palisade/internal/biometric/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists biometric samples. Embeddings are stored as JSONB
// float arrays; templates as bytea. A single SELECT per match gives MVCC
// snapshot semantics without explicit locking.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sampleColumns = `
	id, person_id, kind, vector, template, position, quality, is_deleted, enrolled_at
`

func (s *PostgresStore) Append(ctx context.Context, sample *models.Sample) error {
	var vector []byte
	if sample.Vector != nil {
		encoded, err := json.Marshal(sample.Vector)
		if err != nil {
			return fmt.Errorf("marshal vector: %w", err)
		}
		vector = encoded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO biometric_samples (`+sampleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(sample.ID), uuid.UUID(sample.PersonID), string(sample.Kind),
		vector, sample.Template, sample.Position, sample.Quality,
		sample.IsDeleted, sample.EnrolledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, sampleID id.SampleID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE biometric_samples SET is_deleted = TRUE WHERE id = $1`,
		uuid.UUID(sampleID),
	)
	if err != nil {
		return fmt.Errorf("soft-delete sample: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft-delete sample: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LiveByKind(ctx context.Context, kind models.Kind) ([]*models.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sampleColumns+`
		FROM biometric_samples
		WHERE kind = $1 AND NOT is_deleted
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []*models.Sample
	for rows.Next() {
		var (
			sample   models.Sample
			sampleID uuid.UUID
			personID uuid.UUID
			kindRaw  string
			vector   []byte
		)
		err := rows.Scan(
			&sampleID, &personID, &kindRaw, &vector, &sample.Template,
			&sample.Position, &sample.Quality, &sample.IsDeleted, &sample.EnrolledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample.ID = id.SampleID(sampleID)
		sample.PersonID = id.PersonID(personID)
		sample.Kind = models.Kind(kindRaw)
		if len(vector) > 0 {
			if err := json.Unmarshal(vector, &sample.Vector); err != nil {
				return nil, fmt.Errorf("unmarshal vector: %w", err)
			}
		}
		out = append(out, &sample)
	}
	return out, rows.Err()
}
