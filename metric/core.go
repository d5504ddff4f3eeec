package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/errors"
)

// Metrics holds the process-wide metrics shared by every component.
// Component-specific metrics are registered by the components themselves.
type Metrics struct {
	ErrorsTotal *prometheus.CounterVec
	BuildInfo   *prometheus.GaugeVec
}

// NewMetrics creates the core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Errors handled inside the client by component and category",
			},
			[]string{"component", "category"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "build_info",
				Help:      "Always 1; labelled with the running version",
			},
			[]string{"version"},
		),
	}
}

// RecordError counts err under its domain category. Nil errors are ignored.
func (m *Metrics) RecordError(component string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errors.CategoryOf(err).String()).Inc()
}

// SetBuildInfo publishes the running version
func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.BuildInfo.WithLabelValues(version).Set(1)
}
