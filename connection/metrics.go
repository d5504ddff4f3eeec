package connection

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/devicelink/metric"
)

// Metrics tracks the stream connection
type Metrics struct {
	state                *prometheus.GaugeVec
	connectAttempts      prometheus.Counter
	reconnectsScheduled  prometheus.Counter
	connectTimeouts      prometheus.Counter
	credentialRejections *prometheus.CounterVec
	closes               *prometheus.CounterVec
	framesReceived       prometheus.Counter
	framesSent           prometheus.Counter
	framesRefused        prometheus.Counter
}

var allStates = []State{StateDisconnected, StateConnecting, StateOpen, StateClosing}

// NewMetrics creates and registers connection metrics
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "connect_attempts_total",
			Help:      "Dial attempts that passed the credential guard",
		}),
		reconnectsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnections scheduled after abnormal closure",
		}),
		connectTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "connect_timeouts_total",
			Help:      "Attempts aborted by the connect timeout",
		}),
		credentialRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "credential_rejections_total",
			Help:      "Connect calls refused by the credential guard",
		}, []string{"reason"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "closes_total",
			Help:      "Stream closures by close code",
		}, []string{"code"}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "frames_received_total",
			Help:      "Inbound frames handed to the frame handler",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written to the stream",
		}),
		framesRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "connection",
			Name:      "frames_refused_total",
			Help:      "Outbound frames refused because the stream was not open",
		}),
	}

	if err := registry.RegisterGaugeVec("connection", "state", m.state); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "connect_attempts", m.connectAttempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "reconnects_scheduled", m.reconnectsScheduled); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "connect_timeouts", m.connectTimeouts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("connection", "credential_rejections", m.credentialRejections); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("connection", "closes", m.closes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "frames_received", m.framesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "frames_sent", m.framesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("connection", "frames_refused", m.framesRefused); err != nil {
		return nil, err
	}

	m.setState(StateDisconnected)
	return m, nil
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}

func (m *Metrics) connectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) reconnectScheduled() {
	if m != nil {
		m.reconnectsScheduled.Inc()
	}
}

func (m *Metrics) connectTimeout() {
	if m != nil {
		m.connectTimeouts.Inc()
	}
}

func (m *Metrics) credentialRejected(reason string) {
	if m != nil {
		m.credentialRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) closed(code int) {
	if m != nil {
		m.closes.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func (m *Metrics) frameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) frameSent() {
	if m != nil {
		m.framesSent.Inc()
	}
}

func (m *Metrics) frameRefused() {
	if m != nil {
		m.framesRefused.Inc()
	}
}
