package classifier

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_InsertTelemetry(t *testing.T) {
	raw := []byte(`{
		"eventType": "INSERT",
		"device_id": "pump-01",
		"data": {"deviceId": "ignored", "pressure": 42.5, "flow": "12", "isFault": true}
	}`)

	event := Classify(raw)
	tel, ok := event.(Telemetry)
	require.True(t, ok, "expected Telemetry, got %T", event)

	assert.Equal(t, KindTelemetry, tel.Kind())
	assert.Equal(t, "pump-01", tel.DeviceID)
	assert.Equal(t, map[string]float64{
		"temperature": 0,
		"pressure":    42.5,
		"waterLevel":  0,
		"flow":        12,
	}, tel.Metrics)
	assert.Equal(t, map[string]bool{
		FaultIsFault: true,
		FaultPump1:   false,
		FaultPump2:   false,
	}, tel.Faults)
	assert.True(t, tel.Timestamp.IsZero())
}

func TestClassify_InsertDeviceIDFallback(t *testing.T) {
	tel := Classify([]byte(`{"eventType":"INSERT","data":{"deviceId":"sensor-7","temperature":21}}`)).(Telemetry)

	assert.Equal(t, "sensor-7", tel.DeviceID)
	v, ok := tel.Metric("temperature")
	assert.True(t, ok)
	assert.Equal(t, 21.0, v)
}

func TestClassify_InsertTakesPriorityOverType(t *testing.T) {
	raw := []byte(`{"eventType":"INSERT","type":"alert","data":{"deviceId":"d1","waterLevel":3}}`)

	tel, ok := Classify(raw).(Telemetry)
	require.True(t, ok)
	assert.Equal(t, 3.0, tel.Metrics["waterLevel"])
}

func TestClassify_InsertWithoutDataFallsThrough(t *testing.T) {
	event := Classify([]byte(`{"eventType":"INSERT","type":"connection_ack"}`))
	assert.Equal(t, ConnectionAck{}, event)

	event = Classify([]byte(`{"eventType":"INSERT","data":"nope"}`))
	assert.Equal(t, KindUnrecognized, event.Kind())
}

func TestClassify_Coercion(t *testing.T) {
	raw := []byte(`{"eventType":"INSERT","data":{
		"deviceId": 17,
		"temperature": "19.5",
		"pressure": true,
		"waterLevel": "high",
		"rpm": {"value": 3},
		"PUMP_1": 1,
		"PUMP_2": "true"
	}}`)

	tel := Classify(raw).(Telemetry)

	assert.Equal(t, "17", tel.DeviceID)
	assert.Equal(t, 19.5, tel.Metrics["temperature"])
	assert.Equal(t, 0.0, tel.Metrics["pressure"], "booleans count as absent")
	assert.Equal(t, 0.0, tel.Metrics["waterLevel"], "non-numeric strings count as absent")
	assert.NotContains(t, tel.Metrics, "rpm")
	assert.True(t, tel.Faults[FaultPump1])
	assert.True(t, tel.Faults[FaultPump2])
	assert.False(t, tel.Faults[FaultIsFault])
}

func TestClassify_NonFiniteNumbersAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"insert NaN", `{"eventType":"INSERT","data":{"deviceId":"pump-1","pressure":"NaN"}}`},
		{"insert negative infinity", `{"eventType":"INSERT","data":{"deviceId":"pump-1","pressure":"-Infinity"}}`},
		{"flat infinity", `{"type":"telemetry","deviceId":"pump-1","pressure":"Inf"}`},
		{"flat signed infinity", `{"type":"telemetry","deviceId":"pump-1","pressure":" +Inf "}`},
		{"out of range literal", `{"type":"telemetry","deviceId":"pump-1","pressure":1e999}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, ok := Classify([]byte(tt.raw)).(Telemetry)
			require.True(t, ok)
			for name, v := range tel.Metrics {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "metric %s is %v", name, v)
			}
			if v, present := tel.Metrics["pressure"]; present {
				assert.Equal(t, 0.0, v, "INSERT base metric falls back to zero")
			}
		})
	}
}

func TestClassify_InsertIgnoresTopLevelCamelCaseID(t *testing.T) {
	tel := Classify([]byte(`{"eventType":"INSERT","deviceId":"outer","data":{"deviceId":"inner","pressure":1}}`)).(Telemetry)
	assert.Equal(t, "inner", tel.DeviceID)

	tel = Classify([]byte(`{"eventType":"INSERT","deviceId":"outer","data":{"pressure":1}}`)).(Telemetry)
	assert.Empty(t, tel.DeviceID)
}

func TestClassify_FlatTelemetry(t *testing.T) {
	raw := []byte(`{
		"type": "telemetry",
		"deviceId": "valve-3",
		"pressure": 7,
		"timestamp": "2026-03-01T10:00:00.000Z"
	}`)

	tel, ok := Classify(raw).(Telemetry)
	require.True(t, ok)
	assert.Equal(t, "valve-3", tel.DeviceID)
	assert.Equal(t, map[string]float64{"pressure": 7}, tel.Metrics)
	assert.Nil(t, tel.Faults)
	assert.True(t, tel.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestClassify_FlatTelemetryNestedData(t *testing.T) {
	raw := []byte(`{"type":"telemetry","data":{"deviceId":"s1","temperature":30,"isFault":false},"timestamp":1772359200000}`)

	tel := Classify(raw).(Telemetry)
	assert.Equal(t, "s1", tel.DeviceID)
	assert.Equal(t, map[string]float64{"temperature": 30}, tel.Metrics)
	assert.Equal(t, map[string]bool{FaultIsFault: false}, tel.Faults)
	assert.Equal(t, int64(1772359200000), tel.Timestamp.UnixMilli())
}

func TestClassify_FlatVariants(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Event
	}{
		{
			name:     "alert",
			raw:      `{"type":"alert","severity":"critical","message":"overpressure","deviceId":"pump-01"}`,
			expected: Alert{Severity: "critical", Message: "overpressure", DeviceID: "pump-01"},
		},
		{
			name:     "alert with level",
			raw:      `{"type":"alert","level":"warning","message":"low water"}`,
			expected: Alert{Severity: "warning", Message: "low water"},
		},
		{
			name:     "device status",
			raw:      `{"type":"device_status","device_id":"valve-3","status":"offline"}`,
			expected: DeviceStatus{DeviceID: "valve-3", Status: "offline"},
		},
		{
			name:     "connection ack",
			raw:      `{"type":"connection_ack"}`,
			expected: ConnectionAck{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify([]byte(tt.raw)))
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"not json", `not json`, "invalid json"},
		{"array", `[1,2,3]`, "invalid json"},
		{"null", `null`, "frame is not an object"},
		{"no discriminator", `{"hello":"world"}`, "no type discriminator"},
		{"unknown type", `{"type":"heartbeat"}`, `unknown type "heartbeat"`},
		{"empty", ``, "invalid json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Classify([]byte(tt.raw))
			un, ok := event.(Unrecognized)
			require.True(t, ok, "expected Unrecognized, got %T", event)
			assert.Equal(t, []byte(tt.raw), un.Raw)
			assert.Contains(t, un.Reason, tt.reason)
		})
	}
}

func TestClassify_UnrecognizedCopiesRaw(t *testing.T) {
	raw := []byte(`{"type":"nope"}`)
	un := Classify(raw).(Unrecognized)

	raw[0] = 'X'
	assert.Equal(t, byte('{'), un.Raw[0])
}

func TestClassify_Idempotent(t *testing.T) {
	frames := []string{
		`{"eventType":"INSERT","device_id":"pump-01","data":{"pressure":42,"flow":3}}`,
		`{"type":"telemetry","deviceId":"s1","temperature":"20.5","timestamp":"2026-01-01T00:00:00Z"}`,
		`{"type":"alert","severity":"info","message":"ok"}`,
		`{"type":"device_status","deviceId":"v1","status":"warning"}`,
		`{"type":"connection_ack"}`,
		`garbage`,
	}

	for _, frame := range frames {
		first := Classify([]byte(frame))
		second := Classify([]byte(frame))
		assert.Equal(t, first, second, frame)
	}
}
