package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"palisade/internal/ledger/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// PostgresStore persists entry events. request_id carries a UNIQUE
// constraint; InsertIfAbsent leans on ON CONFLICT DO NOTHING so racing
// writers with the same request_id converge on a single row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `
	id, request_id, person_id, node_id, device_serial, method, match_type,
	direction, confidence, vehicle, occurred_at, recorded_at
`

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, event *models.Event) (*models.Event, bool, error) {
	var vehicle []byte
	if event.Vehicle != nil {
		encoded, err := json.Marshal(event.Vehicle)
		if err != nil {
			return nil, false, fmt.Errorf("marshal vehicle: %w", err)
		}
		vehicle = encoded
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO entry_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO NOTHING
	`,
		uuid.UUID(event.ID), event.RequestID, uuid.UUID(event.PersonID),
		uuid.UUID(event.NodeID), event.DeviceSerial, string(event.Method),
		string(event.MatchType), string(event.Direction), event.Confidence,
		vehicle, event.OccurredAt, event.RecordedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert event: %w", err)
	}
	if affected == 1 {
		return clone(event), true, nil
	}

	// Another writer with the same request_id got there first.
	existing, err := s.FindByRequestID(ctx, event.RequestID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) FindByRequestID(ctx context.Context, requestID string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM entry_events WHERE request_id = $1`,
		requestID,
	)
	return scanEvent(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM entry_events WHERE id = $1`,
		uuid.UUID(eventID),
	)
	return scanEvent(row)
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM entry_events
		WHERE person_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, uuid.UUID(personID), limit)
	if err != nil {
		return nil, fmt.Errorf("query events by person: %w", err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) ListByNode(ctx context.Context, nodeID id.NodeID, since time.Time, limit int) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM entry_events
		WHERE node_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`, uuid.UUID(nodeID), since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events by node: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*models.Event, error) {
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		event     models.Event
		eventID   uuid.UUID
		personID  uuid.UUID
		nodeID    uuid.UUID
		method    string
		matchType string
		direction string
		vehicle   []byte
	)
	err := row.Scan(
		&eventID, &event.RequestID, &personID, &nodeID, &event.DeviceSerial,
		&method, &matchType, &direction, &event.Confidence, &vehicle,
		&event.OccurredAt, &event.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.ID = id.EventID(eventID)
	event.PersonID = id.PersonID(personID)
	event.NodeID = id.NodeID(nodeID)
	event.Method = models.Method(method)
	event.MatchType = models.MatchType(matchType)
	event.Direction = models.Direction(direction)
	if len(vehicle) > 0 {
		event.Vehicle = &models.VehicleInfo{}
		if err := json.Unmarshal(vehicle, event.Vehicle); err != nil {
			return nil, fmt.Errorf("unmarshal vehicle: %w", err)
		}
	}
	return &event, nil
}
