package person

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
	txcontext "palisade/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists persons. Mutations run in one transaction holding a
// row lock: version check, update, and audit append commit or abort together.
type PostgresStore struct {
	db    *sql.DB
	trail *audit.PostgresStore
}

func NewPostgres(db *sql.DB, trail *audit.PostgresStore) *PostgresStore {
	return &PostgresStore{db: db, trail: trail}
}

const personColumns = `
	id, full_name, alias, phone, email, identity_number, address,
	category, status, version, relationships, photos, verified_at,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, person *models.Person, record audit.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enroll tx: %w", err)
	}
	defer tx.Rollback()

	relationships, photos, err := marshalAggregates(person)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.UUID(person.ID), person.FullName, person.Alias, person.Phone,
		person.Email, person.IdentityNumber, person.Address,
		string(person.Category), string(person.Status), person.Version,
		relationships, photos, person.VerifiedAt,
		person.CreatedAt, person.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert person: %w", err)
	}

	if err := s.trail.Append(txcontext.WithTx(ctx, tx), record); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`,
		uuid.UUID(personID),
	)
	return scanPerson(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, person)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Mutate(ctx context.Context, personID id.PersonID, expectedVersion int64, mutate func(p *models.Person) (audit.Record, error)) (*models.Person, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mutate tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`,
		uuid.UUID(personID),
	)
	person, err := scanPerson(row)
	if err != nil {
		return nil, err
	}
	if person.Version != expectedVersion {
		return nil, sentinel.ErrConflict
	}

	record, err := mutate(person)
	if err != nil {
		return nil, err
	}

	relationships, photos, err := marshalAggregates(person)
	if err != nil {
		return nil, err
	}

	// Version in the predicate is a belt on top of the row lock.
	result, err := tx.ExecContext(ctx, `
		UPDATE persons SET
			full_name = $1, alias = $2, phone = $3, email = $4,
			identity_number = $5, address = $6, category = $7, status = $8,
			version = $9, relationships = $10, photos = $11, verified_at = $12,
			updated_at = $13
		WHERE id = $14 AND version = $15
	`,
		person.FullName, person.Alias, person.Phone, person.Email,
		person.IdentityNumber, person.Address, string(person.Category),
		string(person.Status), person.Version, relationships, photos,
		person.VerifiedAt, person.UpdatedAt,
		uuid.UUID(personID), expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}

	if err := s.trail.Append(txcontext.WithTx(ctx, tx), record); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mutate tx: %w", err)
	}
	return person, nil
}

func marshalAggregates(person *models.Person) ([]byte, []byte, error) {
	relationships, err := json.Marshal(person.Relationships)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal relationships: %w", err)
	}
	photos, err := json.Marshal(person.Photos)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal photos: %w", err)
	}
	return relationships, photos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		person        models.Person
		personID      uuid.UUID
		category      string
		status        string
		relationships []byte
		photos        []byte
		verifiedAt    sql.NullTime
	)
	err := row.Scan(
		&personID, &person.FullName, &person.Alias, &person.Phone,
		&person.Email, &person.IdentityNumber, &person.Address,
		&category, &status, &person.Version, &relationships, &photos,
		&verifiedAt, &person.CreatedAt, &person.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}
	person.ID = id.PersonID(personID)
	person.Category = models.Category(category)
	person.Status = models.Status(status)
	if len(relationships) > 0 {
		if err := json.Unmarshal(relationships, &person.Relationships); err != nil {
			return nil, fmt.Errorf("unmarshal relationships: %w", err)
		}
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &person.Photos); err != nil {
			return nil, fmt.Errorf("unmarshal photos: %w", err)
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		person.VerifiedAt = &t
	}
	return &person, nil
}
