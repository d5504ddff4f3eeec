package command

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
)

// Metrics counts outbound commands
type Metrics struct {
	sent    *prometheus.CounterVec
	refused *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway metrics
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "commands",
			Name:      "sent_total",
			Help:      "Commands written to the live stream by kind",
		}, []string{"kind"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "commands",
			Name:      "refused_total",
			Help:      "Commands refused by kind and reason",
		}, []string{"kind", "reason"}),
	}

	if err := registry.RegisterCounterVec("commands", "sent", m.sent); err != nil {
		return nil, errors.Wrap(err, "command", "NewMetrics", "register sent counter")
	}
	if err := registry.RegisterCounterVec("commands", "refused", m.refused); err != nil {
		return nil, errors.Wrap(err, "command", "NewMetrics", "register refused counter")
	}
	return m, nil
}

func (m *Metrics) recordSent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordRefused(kind, reason string) {
	if m == nil {
		return
	}
	m.refused.WithLabelValues(kind, reason).Inc()
}
