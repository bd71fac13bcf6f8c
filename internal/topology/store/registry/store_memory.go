package registry

import (
	"context"
	"sync"

	"palisade/internal/topology/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// InMemory keeps the whole topology under one mutex. Serial uniqueness is
// enforced by the bySerial index.
type InMemory struct {
	mu       sync.RWMutex
	villages map[id.VillageID]*models.Village
	nodes    map[id.NodeID]*models.Node
	devices  map[id.DeviceID]*models.Device
	bySerial map[string]id.DeviceID
}

func NewInMemory() *InMemory {
	return &InMemory{
		villages: make(map[id.VillageID]*models.Village),
		nodes:    make(map[id.NodeID]*models.Node),
		devices:  make(map[id.DeviceID]*models.Device),
		bySerial: make(map[string]id.DeviceID),
	}
}

func (s *InMemory) CreateVillage(_ context.Context, village *models.Village) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.villages[village.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	copied := *village
	s.villages[village.ID] = &copied
	return nil
}

func (s *InMemory) FindVillage(_ context.Context, villageID id.VillageID) (*models.Village, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	village, ok := s.villages[villageID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *village
	return &copied, nil
}

func (s *InMemory) CreateNode(_ context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	copied := *node
	s.nodes[node.ID] = &copied
	return nil
}

func (s *InMemory) FindNode(_ context.Context, nodeID id.NodeID) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *node
	return &copied, nil
}

func (s *InMemory) ListNodesByVillage(_ context.Context, villageID id.VillageID) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Node
	for _, node := range s.nodes {
		if node.VillageID == villageID {
			copied := *node
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemory) CreateDevice(_ context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[device.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.bySerial[device.Serial]; ok {
		return sentinel.ErrAlreadyUsed
	}
	copied := cloneDevice(device)
	s.devices[device.ID] = copied
	s.bySerial[device.Serial] = device.ID
	return nil
}

func (s *InMemory) FindDevice(_ context.Context, deviceID id.DeviceID) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, ok := s.devices[deviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDevice(device), nil
}

func (s *InMemory) FindDeviceBySerial(_ context.Context, serial string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deviceID, ok := s.bySerial[serial]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDevice(s.devices[deviceID]), nil
}

func (s *InMemory) ListDevicesByNode(_ context.Context, nodeID id.NodeID) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Device
	for _, device := range s.devices {
		if device.NodeID != nil && *device.NodeID == nodeID {
			out = append(out, cloneDevice(device))
		}
	}
	return out, nil
}

func cloneDevice(device *models.Device) *models.Device {
	copied := *device
	if device.NodeID != nil {
		nodeID := *device.NodeID
		copied.NodeID = &nodeID
	}
	return &copied
}
