// Package domain holds the typed identifiers shared across modules.
//
// Each aggregate gets its own UUID-backed type so the compiler rejects
// cross-aggregate mixups (passing a DeviceID where a PersonID is expected).
// Parse helpers enforce the invariant that IDs are valid, non-nil UUIDs at
// trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "palisade/pkg/domain-errors"
)

type (
	// PersonID identifies an enrolled person (the aggregate root).
	PersonID uuid.UUID
	// SampleID identifies a biometric sample (embedding or template).
	SampleID uuid.UUID
	// EventID is the server-issued identity of an entry ledger event.
	EventID uuid.UUID
	// VillageID identifies a settlement in the topology.
	VillageID uuid.UUID
	// NodeID identifies a gate or checkpoint within a village.
	NodeID uuid.UUID
	// DeviceID identifies a capture device.
	DeviceID uuid.UUID
	// AuditRecordID identifies an audit trail record.
	AuditRecordID uuid.UUID
)

func (id PersonID) String() string      { return uuid.UUID(id).String() }
func (id SampleID) String() string      { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }
func (id VillageID) String() string     { return uuid.UUID(id).String() }
func (id NodeID) String() string        { return uuid.UUID(id).String() }
func (id DeviceID) String() string      { return uuid.UUID(id).String() }
func (id AuditRecordID) String() string { return uuid.UUID(id).String() }

// Text marshaling keeps IDs as canonical UUID strings in JSON bodies and
// log output instead of raw byte arrays.
func (id PersonID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id SampleID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id VillageID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id NodeID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id DeviceID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id AuditRecordID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func unmarshalUUID(raw []byte) (uuid.UUID, error) {
	return uuid.Parse(string(raw))
}

func (id *PersonID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = PersonID(parsed)
	return err
}

func (id *SampleID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = SampleID(parsed)
	return err
}

func (id *EventID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = EventID(parsed)
	return err
}

func (id *VillageID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = VillageID(parsed)
	return err
}

func (id *NodeID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = NodeID(parsed)
	return err
}

func (id *DeviceID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = DeviceID(parsed)
	return err
}

func (id *AuditRecordID) UnmarshalText(raw []byte) error {
	parsed, err := unmarshalUUID(raw)
	*id = AuditRecordID(parsed)
	return err
}

func (id PersonID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SampleID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id VillageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NodeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParsePersonID validates and converts a raw string into a PersonID.
func ParsePersonID(raw string) (PersonID, error) {
	parsed, err := parseUUID(raw, "person id")
	return PersonID(parsed), err
}

// ParseSampleID validates and converts a raw string into a SampleID.
func ParseSampleID(raw string) (SampleID, error) {
	parsed, err := parseUUID(raw, "sample id")
	return SampleID(parsed), err
}

// ParseEventID validates and converts a raw string into an EventID.
func ParseEventID(raw string) (EventID, error) {
	parsed, err := parseUUID(raw, "event id")
	return EventID(parsed), err
}

// ParseDeviceID validates and converts a raw string into a DeviceID.
func ParseDeviceID(raw string) (DeviceID, error) {
	parsed, err := parseUUID(raw, "device id")
	return DeviceID(parsed), err
}

// ParseVillageID validates and converts a raw string into a VillageID.
func ParseVillageID(raw string) (VillageID, error) {
	parsed, err := parseUUID(raw, "village id")
	return VillageID(parsed), err
}

// ParseNodeID validates and converts a raw string into a NodeID.
func ParseNodeID(raw string) (NodeID, error) {
	parsed, err := parseUUID(raw, "node id")
	return NodeID(parsed), err
}
