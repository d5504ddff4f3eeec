package natsbridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
)

// Metrics counts bridge publishes
type Metrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
	link      prometheus.Gauge
}

// NewMetrics creates and registers the bridge metrics
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "bridge",
			Name:      "published_total",
			Help:      "Messages published to NATS by subject kind",
		}, []string{"subject_kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "bridge",
			Name:      "publish_failures_total",
			Help:      "Messages that could not be published by subject kind",
		}, []string{"subject_kind"}),
		link: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "bridge",
			Name:      "link_state",
			Help:      "NATS link state (0=closed, 1=reconnecting, 2=connected)",
		}),
	}

	if err := registry.RegisterCounterVec("bridge", "published", m.published); err != nil {
		return nil, errors.Wrap(err, "natsbridge", "NewMetrics", "register published counter")
	}
	if err := registry.RegisterCounterVec("bridge", "publish_failures", m.failures); err != nil {
		return nil, errors.Wrap(err, "natsbridge", "NewMetrics", "register failure counter")
	}
	if err := registry.RegisterGauge("bridge", "link_state", m.link); err != nil {
		return nil, errors.Wrap(err, "natsbridge", "NewMetrics", "register link gauge")
	}
	return m, nil
}

func (m *Metrics) recordPublished(kind string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) setLink(state linkState) {
	if m == nil {
		return
	}
	m.link.Set(float64(state))
}
