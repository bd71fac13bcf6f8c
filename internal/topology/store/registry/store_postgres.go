package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"palisade/internal/topology/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists the topology. device serial carries a UNIQUE
// constraint; node_id is nullable for auth devices.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateVillage(ctx context.Context, village *models.Village) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO villages (id, name, region, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(village.ID), village.Name, village.Region, village.CreatedAt)
	return wrapInsert(err, "insert village")
}

func (s *PostgresStore) FindVillage(ctx context.Context, villageID id.VillageID) (*models.Village, error) {
	var (
		village    models.Village
		villageRaw uuid.UUID
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, region, created_at FROM villages WHERE id = $1`,
		uuid.UUID(villageID),
	).Scan(&villageRaw, &village.Name, &village.Region, &village.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan village: %w", err)
	}
	village.ID = id.VillageID(villageRaw)
	return &village, nil
}

func (s *PostgresStore) CreateNode(ctx context.Context, node *models.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, village_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(node.ID), uuid.UUID(node.VillageID), node.Name, node.CreatedAt)
	return wrapInsert(err, "insert node")
}

func (s *PostgresStore) FindNode(ctx context.Context, nodeID id.NodeID) (*models.Node, error) {
	var (
		node       models.Node
		nodeRaw    uuid.UUID
		villageRaw uuid.UUID
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, village_id, name, created_at FROM nodes WHERE id = $1`,
		uuid.UUID(nodeID),
	).Scan(&nodeRaw, &villageRaw, &node.Name, &node.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan node: %w", err)
	}
	node.ID = id.NodeID(nodeRaw)
	node.VillageID = id.VillageID(villageRaw)
	return &node, nil
}

func (s *PostgresStore) ListNodesByVillage(ctx context.Context, villageID id.VillageID) ([]*models.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, village_id, name, created_at
		FROM nodes WHERE village_id = $1 ORDER BY created_at
	`, uuid.UUID(villageID))
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		var (
			node       models.Node
			nodeRaw    uuid.UUID
			villageRaw uuid.UUID
		)
		if err := rows.Scan(&nodeRaw, &villageRaw, &node.Name, &node.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		node.ID = id.NodeID(nodeRaw)
		node.VillageID = id.VillageID(villageRaw)
		out = append(out, &node)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) error {
	var nodeID any
	if device.NodeID != nil {
		nodeID = uuid.UUID(*device.NodeID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (id, serial, kind, node_id, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(device.ID), device.Serial, string(device.Kind), nodeID,
		device.SecretHash, device.CreatedAt)
	return wrapInsert(err, "insert device")
}

func (s *PostgresStore) FindDevice(ctx context.Context, deviceID id.DeviceID) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, serial, kind, node_id, secret_hash, created_at
		FROM devices WHERE id = $1
	`, uuid.UUID(deviceID))
	return scanDevice(row)
}

func (s *PostgresStore) FindDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, serial, kind, node_id, secret_hash, created_at
		FROM devices WHERE serial = $1
	`, serial)
	return scanDevice(row)
}

func (s *PostgresStore) ListDevicesByNode(ctx context.Context, nodeID id.NodeID) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, serial, kind, node_id, secret_hash, created_at
		FROM devices WHERE node_id = $1 ORDER BY created_at
	`, uuid.UUID(nodeID))
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var out []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, device)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		device    models.Device
		deviceRaw uuid.UUID
		kind      string
		nodeRaw   uuid.NullUUID
	)
	err := row.Scan(&deviceRaw, &device.Serial, &kind, &nodeRaw,
		&device.SecretHash, &device.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan device: %w", err)
	}
	device.ID = id.DeviceID(deviceRaw)
	device.Kind = models.DeviceKind(kind)
	if nodeRaw.Valid {
		nodeID := id.NodeID(nodeRaw.UUID)
		device.NodeID = &nodeID
	}
	return &device, nil
}

func wrapInsert(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrAlreadyUsed
	}
	return fmt.Errorf("%s: %w", op, err)
}
