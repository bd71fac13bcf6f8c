package models

import (
	"time"

	id "palisade/pkg/domain"
)

// Village is the top of the topology. One village owns many nodes.
type Village struct {
	ID        id.VillageID `json:"id"`
	Name      string       `json:"name"`
	Region    string       `json:"region,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Node is one controlled point inside a village, typically a gate.
type Node struct {
	ID        id.NodeID    `json:"id"`
	VillageID id.VillageID `json:"village_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

// DeviceKind separates gate hardware from auth-only handhelds.
type DeviceKind string

const (
	DeviceGate DeviceKind = "gate"
	DeviceAuth DeviceKind = "auth"
)

func (k DeviceKind) Valid() bool {
	return k == DeviceGate || k == DeviceAuth
}

// Device is registered hardware. Gate devices are always attached to a
// node; auth devices may float unattached. The provisioning secret is
// stored only as a bcrypt hash.
type Device struct {
	ID         id.DeviceID `json:"id"`
	Serial     string      `json:"serial"`
	Kind       DeviceKind  `json:"kind"`
	NodeID     *id.NodeID  `json:"node_id,omitempty"`
	SecretHash string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Resolved is a device with its chain up the topology, populated as far
// as the device is attached.
type Resolved struct {
	Device  *Device  `json:"device"`
	Node    *Node    `json:"node,omitempty"`
	Village *Village `json:"village,omitempty"`
}
