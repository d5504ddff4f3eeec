package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
)

// Metrics counts classified frames
type Metrics struct {
	frames *prometheus.CounterVec
}

// NewMetrics creates and registers the session metrics
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "classifier",
			Name:      "frames_total",
			Help:      "Inbound frames by classified kind",
		}, []string{"kind"}),
	}

	if err := registry.RegisterCounterVec("classifier", "frames", m.frames); err != nil {
		return nil, errors.Wrap(err, "session", "NewMetrics", "register frames counter")
	}
	return m, nil
}

func (m *Metrics) frameClassified(kind classifier.Kind) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(string(kind)).Inc()
}
