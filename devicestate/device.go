// Package devicestate holds the typed device model and the reconciler that
// merges classified events into it.
//
// Reconcile is the pure form: given a State, an event and the current time it
// returns the next State and an Outcome describing what happened. Store wraps
// it with locking, logging and metrics and hands out copies only.
package devicestate

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/c360/devicelink/errors"
)

// Type is a device's declared kind; it fixes the readings schema.
type Type string

const (
	TypePump   Type = "pump"
	TypeSensor Type = "sensor"
	TypeValve  Type = "valve"
)

// Status is a device's liveness as last reported
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusWarning Status = "warning"
)

// Reading field names
const (
	FieldPressure    = "pressure"
	FieldFlow        = "flow"
	FieldTemperature = "temperature"
)

var allowedFields = map[Type][]string{
	TypePump:   {FieldPressure, FieldFlow},
	TypeValve:  {FieldPressure},
	TypeSensor: {FieldTemperature},
}

// AllowedFields returns the readings a device type accepts
func AllowedFields(t Type) []string {
	return slices.Clone(allowedFields[t])
}

// Accepts reports whether field belongs to the type's readings schema
func (t Type) Accepts(field string) bool {
	return slices.Contains(allowedFields[t], field)
}

// Valid reports whether t is a known device type
func (t Type) Valid() bool {
	_, ok := allowedFields[t]
	return ok
}

// ParseStatus maps a wire status onto Status
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusOnline, StatusOffline, StatusWarning:
		return Status(s), true
	default:
		return "", false
	}
}

// Device is one record of the device inventory
type Device struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name" yaml:"name"`
	Type       Type               `json:"type" yaml:"type"`
	Status     Status             `json:"status" yaml:"status"`
	LastSeen   time.Time          `json:"lastSeen" yaml:"last_seen"`
	Readings   map[string]float64 `json:"readings" yaml:"readings"`
	Location   string             `json:"location,omitempty" yaml:"location"`
	CanControl bool               `json:"canControl" yaml:"can_control"`
	IsOn       bool               `json:"isOn" yaml:"is_on"`
}

// Clone returns a copy that shares no mutable state with d
func (d Device) Clone() Device {
	d.Readings = maps.Clone(d.Readings)
	return d
}

// Validate checks the record against its type's schema
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty device id", errors.ErrInvalidData),
			"Device", "Validate", "check id")
	}
	if !d.Type.Valid() {
		return errors.WrapInvalid(fmt.Errorf("%w: device %s has unknown type %q", errors.ErrInvalidData, d.ID, d.Type),
			"Device", "Validate", "check type")
	}
	if d.Status != "" {
		if _, ok := ParseStatus(string(d.Status)); !ok {
			return errors.WrapInvalid(fmt.Errorf("%w: device %s status %q", errors.ErrUnknownStatus, d.ID, d.Status),
				"Device", "Validate", "check status")
		}
	}
	for field := range d.Readings {
		if !d.Type.Accepts(field) {
			return errors.WrapInvalid(fmt.Errorf("%w: %s on %s %s", errors.ErrFieldRejected, field, d.Type, d.ID),
				"Device", "Validate", "check readings")
		}
	}
	return nil
}

// State is the device inventory keyed by id. Reconcile never mutates a State
// in place.
type State map[string]Device

// NewState builds a State from records, validating each and rejecting
// duplicate ids. Missing statuses default to offline.
func NewState(devices []Device) (State, error) {
	state := make(State, len(devices))
	for _, d := range devices {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := state[d.ID]; dup {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: duplicate device id %s", errors.ErrInvalidData, d.ID),
				"devicestate", "NewState", "index devices")
		}
		d = d.Clone()
		if d.Status == "" {
			d.Status = StatusOffline
		}
		if d.Readings == nil {
			d.Readings = make(map[string]float64)
		}
		state[d.ID] = d
	}
	return state, nil
}

// Devices returns copies of all records ordered by id
func (s State) Devices() []Device {
	out := make([]Device, 0, len(s))
	for _, id := range slices.Sorted(maps.Keys(s)) {
		out = append(out, s[id].Clone())
	}
	return out
}
