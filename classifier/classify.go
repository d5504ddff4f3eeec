// Package classifier turns raw inbound frames into typed events.
//
// Classify is pure: the same bytes always yield the same Event. Frames that
// cannot be parsed or carry no known shape become Unrecognized.
package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/devicelink/pkg/timestamp"
)

// baseMetrics are always present on structural telemetry, zero when absent
var baseMetrics = []string{"temperature", "pressure", "waterLevel"}

var faultFlags = []string{FaultIsFault, FaultPump1, FaultPump2}

// reserved keys never read as metrics
var reserved = map[string]bool{
	"type":       true,
	"eventType":  true,
	"deviceId":   true,
	"device_id":  true,
	"timestamp":  true,
	"data":       true,
	FaultIsFault: true,
	FaultPump1:   true,
	FaultPump2:   true,
}

// Classify parses raw and returns the matching event. The structural INSERT
// shape is checked before the flat type discriminator.
func Classify(raw []byte) Event {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var frame map[string]any
	if err := dec.Decode(&frame); err != nil {
		return unrecognized(raw, fmt.Sprintf("invalid json: %v", err))
	}
	if frame == nil {
		return unrecognized(raw, "frame is not an object")
	}

	if getString(frame, "eventType") == "INSERT" {
		if data, ok := getObject(frame, "data"); ok {
			return insertTelemetry(frame, data)
		}
	}

	switch Kind(getString(frame, "type")) {
	case KindTelemetry:
		return flatTelemetry(frame)
	case KindAlert:
		return Alert{
			Severity: firstString(frame, "severity", "level"),
			Message:  getString(frame, "message"),
			DeviceID: deviceID(frame, nil),
		}
	case KindDeviceStatus:
		return DeviceStatus{
			DeviceID: deviceID(frame, nil),
			Status:   getString(frame, "status"),
		}
	case KindConnectionAck:
		return ConnectionAck{}
	case "":
		return unrecognized(raw, "no type discriminator")
	default:
		return unrecognized(raw, fmt.Sprintf("unknown type %q", getString(frame, "type")))
	}
}

func insertTelemetry(frame, data map[string]any) Telemetry {
	metrics := make(map[string]float64, len(baseMetrics))
	for _, name := range baseMetrics {
		metrics[name] = 0
	}
	collectMetrics(data, metrics)

	faults := make(map[string]bool, len(faultFlags))
	for _, flag := range faultFlags {
		faults[flag] = getBool(data, flag)
	}

	id := getString(frame, "device_id")
	if id == "" {
		id = getString(data, "deviceId")
	}

	return Telemetry{
		DeviceID:  id,
		Metrics:   metrics,
		Timestamp: frameTime(frame, data),
		Faults:    faults,
	}
}

// flatTelemetry reads metrics from the top level and from a nested data
// object when one is present. Only fields the frame carries are reported.
func flatTelemetry(frame map[string]any) Telemetry {
	metrics := make(map[string]float64)
	collectMetrics(frame, metrics)

	data, hasData := getObject(frame, "data")
	if hasData {
		collectMetrics(data, metrics)
	}

	var faults map[string]bool
	for _, flag := range faultFlags {
		src := frame
		if _, ok := src[flag]; !ok && hasData {
			src = data
		}
		if _, ok := src[flag]; ok {
			if faults == nil {
				faults = make(map[string]bool, len(faultFlags))
			}
			faults[flag] = getBool(src, flag)
		}
	}

	return Telemetry{
		DeviceID:  deviceID(frame, data),
		Metrics:   metrics,
		Timestamp: frameTime(frame, data),
		Faults:    faults,
	}
}

func collectMetrics(obj map[string]any, into map[string]float64) {
	for key, val := range obj {
		if reserved[key] {
			continue
		}
		if f, ok := toNumber(val); ok {
			into[key] = f
		}
	}
}

// deviceID prefers the top-level device_id, then deviceId, then the nested
// payload's deviceId.
func deviceID(frame, data map[string]any) string {
	if id := firstString(frame, "device_id", "deviceId"); id != "" {
		return id
	}
	if data != nil {
		return firstString(data, "deviceId", "device_id")
	}
	return ""
}

func frameTime(frame, data map[string]any) time.Time {
	if v, ok := frame["timestamp"]; ok {
		return parseTime(v)
	}
	if data != nil {
		if v, ok := data["timestamp"]; ok {
			return parseTime(v)
		}
	}
	return time.Time{}
}

func parseTime(v any) time.Time {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return timestamp.ParseTime(i)
		}
		if f, err := n.Float64(); err == nil {
			return timestamp.ParseTime(f)
		}
		return time.Time{}
	}
	return timestamp.ParseTime(v)
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := getString(obj, key); s != "" {
			return s
		}
	}
	return ""
}

func unrecognized(raw []byte, reason string) Unrecognized {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Unrecognized{Raw: cp, Reason: reason}
}
