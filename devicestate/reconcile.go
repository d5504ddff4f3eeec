package devicestate

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/errors"
)

// Result summarises what Reconcile did with an event
type Result string

const (
	ResultApplied   Result = "applied"
	ResultSkipped   Result = "skipped"
	ResultForwarded Result = "forwarded"
	ResultIgnored   Result = "ignored"
)

// Outcome describes the effect of one event
type Outcome struct {
	Kind     classifier.Kind
	Result   Result
	DeviceID string

	// Written and Rejected list reading fields, sorted
	Written  []string
	Rejected []string

	// Err carries the reconciliation-skip reason when Result is skipped
	Err error

	// Alert is set when the event is forwarded to observers
	Alert *classifier.Alert
}

// Changed reports whether the outcome mutated state
func (o Outcome) Changed() bool {
	return o.Result == ResultApplied
}

// Reconcile applies event to state as of now. The input state is left
// untouched; when the event changes a device the returned State is a new map
// holding a new record for it.
func Reconcile(state State, event classifier.Event, now time.Time) (State, Outcome) {
	switch ev := event.(type) {
	case classifier.Telemetry:
		return applyTelemetry(state, ev, now)
	case classifier.DeviceStatus:
		return applyStatus(state, ev, now)
	case classifier.Alert:
		alert := ev
		return state, Outcome{
			Kind:     ev.Kind(),
			Result:   ResultForwarded,
			DeviceID: ev.DeviceID,
			Alert:    &alert,
		}
	case nil:
		return state, Outcome{Kind: classifier.KindUnrecognized, Result: ResultIgnored}
	default:
		return state, Outcome{Kind: ev.Kind(), Result: ResultIgnored}
	}
}

func applyTelemetry(state State, ev classifier.Telemetry, now time.Time) (State, Outcome) {
	out := Outcome{Kind: ev.Kind(), DeviceID: ev.DeviceID}

	device, ok := state[ev.DeviceID]
	if !ok {
		out.Result = ResultSkipped
		out.Err = errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownDevice, ev.DeviceID),
			"Reconciler", "Apply", "locate device")
		return state, out
	}

	device = device.Clone()
	if device.Readings == nil {
		device.Readings = make(map[string]float64)
	}

	for _, field := range slices.Sorted(maps.Keys(ev.Metrics)) {
		if device.Type.Accepts(field) {
			device.Readings[field] = ev.Metrics[field]
			out.Written = append(out.Written, field)
		} else {
			out.Rejected = append(out.Rejected, field)
		}
	}

	device.Status = StatusOnline
	device.LastSeen = now

	out.Result = ResultApplied
	return withDevice(state, device), out
}

func applyStatus(state State, ev classifier.DeviceStatus, now time.Time) (State, Outcome) {
	out := Outcome{Kind: ev.Kind(), DeviceID: ev.DeviceID}

	device, ok := state[ev.DeviceID]
	if !ok {
		out.Result = ResultSkipped
		out.Err = errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownDevice, ev.DeviceID),
			"Reconciler", "Apply", "locate device")
		return state, out
	}

	status, ok := ParseStatus(ev.Status)
	if !ok {
		out.Result = ResultSkipped
		out.Err = errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownStatus, ev.Status),
			"Reconciler", "Apply", "parse status")
		return state, out
	}

	device = device.Clone()
	device.Status = status
	device.LastSeen = now

	out.Result = ResultApplied
	return withDevice(state, device), out
}

func withDevice(state State, device Device) State {
	next := maps.Clone(state)
	if next == nil {
		next = make(State, 1)
	}
	next[device.ID] = device
	return next
}
