package devicestate

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
)

// Metrics counts reconciliation outcomes
type Metrics struct {
	outcomes       *prometheus.CounterVec
	rejectedFields *prometheus.CounterVec
}

// NewMetrics creates and registers the reconciler metrics
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "reconciler",
			Name:      "events_total",
			Help:      "Events handled by the reconciler by kind and result",
		}, []string{"kind", "result"}),
		rejectedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "reconciler",
			Name:      "rejected_fields_total",
			Help:      "Telemetry fields dropped because the device type does not carry them",
		}, []string{"device_type", "field"}),
	}

	if err := registry.RegisterCounterVec("reconciler", "events", m.outcomes); err != nil {
		return nil, errors.Wrap(err, "devicestate", "NewMetrics", "register events counter")
	}
	if err := registry.RegisterCounterVec("reconciler", "rejected_fields", m.rejectedFields); err != nil {
		return nil, errors.Wrap(err, "devicestate", "NewMetrics", "register rejected fields counter")
	}
	return m, nil
}

func (m *Metrics) record(out Outcome, deviceType Type) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(out.Kind), string(out.Result)).Inc()
	for _, field := range out.Rejected {
		m.rejectedFields.WithLabelValues(string(deviceType), field).Inc()
	}
}
