package models

import (
	"time"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// Method is how the person was identified at the gate.
type Method string

const (
	MethodFace        Method = "face"
	MethodFingerprint Method = "fingerprint"
	MethodManual      Method = "manual"
)

func (m Method) Valid() bool {
	switch m {
	case MethodFace, MethodFingerprint, MethodManual:
		return true
	}
	return false
}

// MatchType records which path confirmed the identification.
type MatchType string

const (
	MatchMobileAuto    MatchType = "mobile_auto"
	MatchServerConfirm MatchType = "server_confirm"
	MatchManual        MatchType = "manual"
)

func (m MatchType) Valid() bool {
	switch m {
	case MatchMobileAuto, MatchServerConfirm, MatchManual:
		return true
	}
	return false
}

// Direction of passage through the gate.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// VehicleInfo is optional vehicle detail captured at the gate.
type VehicleInfo struct {
	Plate string `json:"plate,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Color string `json:"color,omitempty"`
}

// Event is one immutable entry-ledger row. Events are never updated or
// deleted after recording.
type Event struct {
	ID           id.EventID   `json:"id"`
	RequestID    string       `json:"request_id"`
	PersonID     id.PersonID  `json:"person_id"`
	NodeID       id.NodeID    `json:"node_id"`
	DeviceSerial string       `json:"device_serial"`
	Method       Method       `json:"method"`
	MatchType    MatchType    `json:"match_type"`
	Direction    Direction    `json:"direction"`
	Confidence   float64      `json:"confidence"`
	Vehicle      *VehicleInfo `json:"vehicle,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
	RecordedAt   time.Time    `json:"recorded_at"`
}

// Request is the recording payload before identifier resolution.
type Request struct {
	RequestID    string       `json:"request_id"`
	PersonID     string       `json:"person_id"`
	DeviceSerial string       `json:"device_serial"`
	Method       Method       `json:"method"`
	MatchType    MatchType    `json:"match_type"`
	Direction    Direction    `json:"direction"`
	Confidence   float64      `json:"confidence"`
	Vehicle      *VehicleInfo `json:"vehicle,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// Validate checks field-level constraints. Referential checks (person and
// device resolution) belong to the service.
func (r Request) Validate() error {
	if r.RequestID == "" {
		return dErrors.New(dErrors.CodeValidation, "request_id is required")
	}
	if r.PersonID == "" {
		return dErrors.New(dErrors.CodeValidation, "person_id is required")
	}
	if r.DeviceSerial == "" {
		return dErrors.New(dErrors.CodeValidation, "device_serial is required")
	}
	if !r.Method.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown identification method")
	}
	if !r.MatchType.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown match type")
	}
	if !r.Direction.Valid() {
		return dErrors.New(dErrors.CodeValidation, "direction must be in or out")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return dErrors.New(dErrors.CodeValidation, "confidence must be within [0, 1]")
	}
	if r.OccurredAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "occurred_at is required")
	}
	return nil
}
