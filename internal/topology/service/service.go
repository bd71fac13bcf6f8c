package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"palisade/internal/topology/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
	"palisade/pkg/requestcontext"
	"palisade/pkg/secrets"
)

// Store persists the village/node/device registry.
type Store interface {
	CreateVillage(ctx context.Context, village *models.Village) error
	FindVillage(ctx context.Context, villageID id.VillageID) (*models.Village, error)
	CreateNode(ctx context.Context, node *models.Node) error
	FindNode(ctx context.Context, nodeID id.NodeID) (*models.Node, error)
	ListNodesByVillage(ctx context.Context, villageID id.VillageID) ([]*models.Node, error)
	CreateDevice(ctx context.Context, device *models.Device) error
	FindDevice(ctx context.Context, deviceID id.DeviceID) (*models.Device, error)
	FindDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	ListDevicesByNode(ctx context.Context, nodeID id.NodeID) ([]*models.Device, error)
}

// Service is the topology registry.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) RegisterVillage(ctx context.Context, name, region string) (*models.Village, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "village name is required")
	}
	village := &models.Village{
		ID:        id.VillageID(uuid.New()),
		Name:      name,
		Region:    region,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.CreateVillage(ctx, village); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not store village")
	}
	s.logger.InfoContext(ctx, "village registered", "village_id", village.ID.String(), "name", name)
	return village, nil
}

func (s *Service) RegisterNode(ctx context.Context, villageID id.VillageID, name string) (*models.Node, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "node name is required")
	}
	if _, err := s.store.FindVillage(ctx, villageID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForeignKey, "village does not resolve")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve village")
	}
	node := &models.Node{
		ID:        id.NodeID(uuid.New()),
		VillageID: villageID,
		Name:      name,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not store node")
	}
	s.logger.InfoContext(ctx, "node registered", "node_id", node.ID.String(), "village_id", villageID.String())
	return node, nil
}

// RegisterDevice provisions hardware and returns the plaintext secret
// exactly once. Gate devices require a node; auth devices may float.
func (s *Service) RegisterDevice(ctx context.Context, serial string, kind models.DeviceKind, nodeID *id.NodeID) (*models.Device, string, error) {
	if serial == "" {
		return nil, "", dErrors.New(dErrors.CodeValidation, "device serial is required")
	}
	if !kind.Valid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "unknown device kind")
	}
	if kind == models.DeviceGate && nodeID == nil {
		return nil, "", dErrors.New(dErrors.CodeValidation, "gate devices must be attached to a node")
	}
	if nodeID != nil {
		if _, err := s.store.FindNode(ctx, *nodeID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, "", dErrors.New(dErrors.CodeForeignKey, "node does not resolve")
			}
			return nil, "", dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve node")
		}
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate device secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash device secret")
	}

	device := &models.Device{
		ID:         id.DeviceID(uuid.New()),
		Serial:     serial,
		Kind:       kind,
		NodeID:     nodeID,
		SecretHash: hash,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "device serial already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeUnavailable, "could not store device")
	}
	s.logger.InfoContext(ctx, "device registered",
		"device_id", device.ID.String(),
		"serial", serial,
		"kind", string(kind),
	)
	return device, secret, nil
}

// Resolve returns the device and, when attached, its node and village.
func (s *Service) Resolve(ctx context.Context, deviceID id.DeviceID) (*models.Resolved, error) {
	device, err := s.store.FindDevice(ctx, deviceID)
	if err != nil {
		return nil, wrapLookup(err, "device")
	}
	return s.resolveChain(ctx, device)
}

// ResolveBySerial is Resolve keyed by hardware serial.
func (s *Service) ResolveBySerial(ctx context.Context, serial string) (*models.Resolved, error) {
	device, err := s.store.FindDeviceBySerial(ctx, serial)
	if err != nil {
		return nil, wrapLookup(err, "device")
	}
	return s.resolveChain(ctx, device)
}

func (s *Service) resolveChain(ctx context.Context, device *models.Device) (*models.Resolved, error) {
	resolved := &models.Resolved{Device: device}
	if device.NodeID == nil {
		return resolved, nil
	}
	node, err := s.store.FindNode(ctx, *device.NodeID)
	if err != nil {
		return nil, wrapLookup(err, "node")
	}
	resolved.Node = node
	village, err := s.store.FindVillage(ctx, node.VillageID)
	if err != nil {
		return nil, wrapLookup(err, "village")
	}
	resolved.Village = village
	return resolved, nil
}

// ResolveGateDevice maps a serial to its gate node. Used by the ledger's
// referential check; auth-only and unattached devices do not qualify.
func (s *Service) ResolveGateDevice(ctx context.Context, serial string) (id.NodeID, error) {
	device, err := s.store.FindDeviceBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.NodeID{}, dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return id.NodeID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve device")
	}
	if device.Kind != models.DeviceGate || device.NodeID == nil {
		return id.NodeID{}, dErrors.New(dErrors.CodeNotFound, "device is not an attached gate")
	}
	return *device.NodeID, nil
}

// VerifyDeviceSecret authenticates a gateway by serial and provisioning
// secret.
func (s *Service) VerifyDeviceSecret(ctx context.Context, serial, secret string) (*models.Device, error) {
	device, err := s.store.FindDeviceBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same answer as a wrong secret so serials cannot be probed.
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid device secret")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve device")
	}
	if err := secrets.Verify(secret, device.SecretHash); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *Service) ListNodes(ctx context.Context, villageID id.VillageID) ([]*models.Node, error) {
	nodes, err := s.store.ListNodesByVillage(ctx, villageID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not list nodes")
	}
	return nodes, nil
}

func (s *Service) ListDevices(ctx context.Context, nodeID id.NodeID) ([]*models.Device, error) {
	devices, err := s.store.ListDevicesByNode(ctx, nodeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not list devices")
	}
	return devices, nil
}

func wrapLookup(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not load "+what)
}
