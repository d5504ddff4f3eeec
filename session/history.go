package session

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/pkg/timestamp"
)

// DefaultHistorySize is the number of telemetry points kept
const DefaultHistorySize = 50

// historyMetrics are the readings charted over time
var historyMetrics = []string{"temperature", "pressure", "waterLevel"}

// HistoryPoint is one telemetry sample in the history window
type HistoryPoint struct {
	DeviceID  string
	Timestamp time.Time
	Metrics   map[string]float64
}

// MarshalJSON flattens the metrics next to deviceId and an ISO timestamp
func (p HistoryPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Metrics)+2)
	for k, v := range p.Metrics {
		out[k] = v
	}
	out["deviceId"] = p.DeviceID
	out["timestamp"] = timestamp.ISO(p.Timestamp)
	return json.Marshal(out)
}

// newHistoryPoint keeps only the charted metrics; a zero event time falls
// back to now.
func newHistoryPoint(ev classifier.Telemetry, now time.Time) HistoryPoint {
	p := HistoryPoint{
		DeviceID:  ev.DeviceID,
		Timestamp: ev.Timestamp,
		Metrics:   make(map[string]float64, len(historyMetrics)),
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	for _, name := range historyMetrics {
		if v, ok := ev.Metric(name); ok {
			p.Metrics[name] = v
		}
	}
	return p
}

func (p HistoryPoint) clone() HistoryPoint {
	p.Metrics = maps.Clone(p.Metrics)
	return p
}
