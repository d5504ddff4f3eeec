// Package metric provides the Prometheus metrics registry and HTTP exporter
// shared by devicelink components.
//
// Components build their own collectors under the "devicelink" namespace and
// register them through MetricsRegistry, keyed by component and metric name so
// duplicate registration is reported as an invalid error rather than a panic:
//
//	registry := metric.NewMetricsRegistry()
//	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
//	    Namespace: metric.Namespace,
//	    Subsystem: "connection",
//	    Name:      "frames_total",
//	}, []string{"category"})
//	if err := registry.RegisterCounterVec("connection", "frames", frames); err != nil {
//	    return err
//	}
//
// Server exposes the registry over HTTP together with a /health endpoint.
package metric
