package classifier

import "time"

// Kind names an event variant
type Kind string

const (
	KindTelemetry     Kind = "telemetry"
	KindAlert         Kind = "alert"
	KindDeviceStatus  Kind = "device_status"
	KindConnectionAck Kind = "connection_ack"
	KindUnrecognized  Kind = "unrecognized"
)

// Event is the closed set of classified inbound frames. Only the types in
// this package implement it.
type Event interface {
	Kind() Kind
	isEvent()
}

// Fault flag names carried by telemetry frames
const (
	FaultIsFault = "isFault"
	FaultPump1   = "PUMP_1"
	FaultPump2   = "PUMP_2"
)

// Telemetry carries numeric readings for one device.
type Telemetry struct {
	DeviceID string
	Metrics  map[string]float64
	// Timestamp is taken from the frame; zero when the frame carries none.
	Timestamp time.Time
	Faults    map[string]bool
}

// Metric returns a reading and whether the frame carried it
func (t Telemetry) Metric(name string) (float64, bool) {
	v, ok := t.Metrics[name]
	return v, ok
}

// Alert is a side-channel notification; it is never stored in device state.
type Alert struct {
	Severity string
	Message  string
	DeviceID string
}

// DeviceStatus reports a device's status change
type DeviceStatus struct {
	DeviceID string
	Status   string
}

// ConnectionAck is the server's acknowledgement of the announcement frame
type ConnectionAck struct{}

// Unrecognized wraps a frame that could not be classified
type Unrecognized struct {
	Raw    []byte
	Reason string
}

func (Telemetry) Kind() Kind     { return KindTelemetry }
func (Alert) Kind() Kind         { return KindAlert }
func (DeviceStatus) Kind() Kind  { return KindDeviceStatus }
func (ConnectionAck) Kind() Kind { return KindConnectionAck }
func (Unrecognized) Kind() Kind  { return KindUnrecognized }

func (Telemetry) isEvent()     {}
func (Alert) isEvent()         {}
func (DeviceStatus) isEvent()  {}
func (ConnectionAck) isEvent() {}
func (Unrecognized) isEvent()  {}
