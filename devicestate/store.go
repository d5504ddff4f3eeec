package devicestate

import (
	"log/slog"
	"sync"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/pkg/clock"
)

// Store owns the device State and is its only writer.
type Store struct {
	mu      sync.RWMutex
	state   State
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics
	core    *metric.Metrics
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock sets the clock used to stamp LastSeen
func WithClock(clk clock.Clock) StoreOption {
	return func(s *Store) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records outcomes on m and skip errors on the registry's core metrics
func WithMetrics(m *Metrics, registry *metric.MetricsRegistry) StoreOption {
	return func(s *Store) {
		s.metrics = m
		if registry != nil {
			s.core = registry.CoreMetrics()
		}
	}
}

// NewStore creates a Store seeded with devices
func NewStore(devices []Device, opts ...StoreOption) (*Store, error) {
	state, err := NewState(devices)
	if err != nil {
		return nil, err
	}

	s := &Store{
		state:  state,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reconciler")
	return s, nil
}

// Apply reconciles one event into the store
func (s *Store) Apply(event classifier.Event) Outcome {
	s.mu.Lock()
	next, out := Reconcile(s.state, event, s.clock.Now())
	s.state = next
	var device Device
	if out.Changed() {
		device = next[out.DeviceID]
	}
	s.mu.Unlock()

	s.metrics.record(out, device.Type)

	switch out.Result {
	case ResultSkipped:
		s.core.RecordError("reconciler", out.Err)
		s.logger.Debug("Event skipped",
			"kind", out.Kind,
			"device_id", out.DeviceID,
			"error", out.Err)
	case ResultApplied:
		if len(out.Rejected) > 0 {
			s.logger.Debug("Fields rejected for device type",
				"device_id", out.DeviceID,
				"device_type", device.Type,
				"fields", out.Rejected)
		}
	}

	return out
}

// Device returns a copy of one record
func (s *Store) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state[id]
	if !ok {
		return Device{}, false
	}
	return d.Clone(), true
}

// Devices returns copies of all records ordered by id
func (s *Store) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Devices()
}
