package session

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/command"
	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/credential"
	"github.com/c360/devicelink/devicestate"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/health"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/pkg/buffer"
	"github.com/c360/devicelink/pkg/clock"
)

// Config holds everything a Session needs besides its collaborators
type Config struct {
	Connection  connection.Config
	Devices     []devicestate.Device
	HistorySize int
}

// Option configures a Session
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   *slog.Logger
	dialer   connection.Dialer
	registry *metric.MetricsRegistry
	id       string
}

// WithClock sets the clock shared by every component
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithLogger sets the base logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer
func WithDialer(d connection.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithMetricsRegistry registers and records metrics for every component
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithID fixes the session id instead of generating one
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// Session is one client instance bound to a credential store
type Session struct {
	id      string
	creds   credential.Store
	clock   clock.Clock
	logger  *slog.Logger
	started time.Time

	manager *connection.Manager
	store   *devicestate.Store
	gateway *command.Gateway
	history buffer.Buffer[HistoryPoint]

	metrics *Metrics
	core    *metric.Metrics

	frames       atomic.Int64
	lastActivity atomic.Int64

	mu        sync.RWMutex
	observers []Observer
	lastEvent classifier.Telemetry
	hasEvent  bool
}

// New builds a Session. Nothing is dialled until Start.
func New(cfg Config, creds credential.Store, opts ...Option) (*Session, error) {
	o := &options{
		clock:  clock.Real(),
		logger: slog.Default(),
		id:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}

	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	s := &Session{
		id:      o.id,
		creds:   creds,
		clock:   o.clock,
		started: o.clock.Now(),
	}
	s.logger = o.logger.With("component", "session", "session_id", s.id)

	var (
		connMetrics    *connection.Metrics
		stateMetrics   *devicestate.Metrics
		commandMetrics *command.Metrics
	)
	if o.registry != nil {
		var err error
		if connMetrics, err = connection.NewMetrics(o.registry); err != nil {
			return nil, errors.WrapFatal(err, "Session", "New", "register connection metrics")
		}
		if stateMetrics, err = devicestate.NewMetrics(o.registry); err != nil {
			return nil, errors.WrapFatal(err, "Session", "New", "register reconciler metrics")
		}
		if commandMetrics, err = command.NewMetrics(o.registry); err != nil {
			return nil, errors.WrapFatal(err, "Session", "New", "register command metrics")
		}
		if s.metrics, err = NewMetrics(o.registry); err != nil {
			return nil, errors.WrapFatal(err, "Session", "New", "register session metrics")
		}
		s.core = o.registry.CoreMetrics()
	}

	componentLogger := o.logger.With("session_id", s.id)

	store, err := devicestate.NewStore(cfg.Devices,
		devicestate.WithClock(o.clock),
		devicestate.WithLogger(componentLogger),
		devicestate.WithMetrics(stateMetrics, o.registry))
	if err != nil {
		return nil, errors.WrapFatal(err, "Session", "New", "seed device inventory")
	}
	s.store = store

	history, err := buffer.NewCircularBuffer[HistoryPoint](historySize,
		buffer.WithMetrics[HistoryPoint](o.registry, "history"))
	if err != nil {
		return nil, errors.WrapFatal(err, "Session", "New", "create history window")
	}
	s.history = history

	manager, err := connection.NewManager(cfg.Connection, creds, o.dialer,
		connection.WithClock(o.clock),
		connection.WithLogger(componentLogger),
		connection.WithFrameHandler(s.onFrame),
		connection.WithMetrics(connMetrics, o.registry))
	if err != nil {
		return nil, errors.WrapFatal(err, "Session", "New", "create connection manager")
	}
	manager.OnStateChange(s.stateChanged)
	s.manager = manager

	s.gateway = command.NewGateway(manager,
		command.WithClock(o.clock),
		command.WithLogger(componentLogger),
		command.WithMetrics(commandMetrics, o.registry))

	return s, nil
}

// ID returns the session's unique id
func (s *Session) ID() string {
	return s.id
}

// Observe registers an observer for state, device and alert notifications
func (s *Session) Observe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Start opens the stream if an identity is present
func (s *Session) Start() {
	s.logger.Info("Session starting", "devices", len(s.store.Devices()))
	s.manager.Connect()
}

// Connect starts an open attempt; see connection.Manager.Connect
func (s *Session) Connect() {
	s.manager.Connect()
}

// Reconnect forces a fresh stream
func (s *Session) Reconnect() {
	s.manager.Reconnect()
}

// Disconnect closes the stream cleanly and suppresses reconnection
func (s *Session) Disconnect() {
	s.manager.Disconnect()
}

// IdentityChanged re-reads the credential store and reconnects, tears down or
// keeps the stream depending on what changed.
func (s *Session) IdentityChanged() {
	s.manager.SyncIdentity()
}

// Close disconnects and releases the history window
func (s *Session) Close() error {
	s.manager.Disconnect()
	if err := s.history.Close(); err != nil {
		return errors.Wrap(err, "Session", "Close", "close history")
	}
	s.logger.Info("Session closed", "frames", s.frames.Load())
	return nil
}

// State returns the connection state
func (s *Session) State() connection.State {
	return s.manager.State()
}

// Schedule returns the reconnect schedule
func (s *Session) Schedule() connection.Schedule {
	return s.manager.Schedule()
}

// LastEvent returns the most recent telemetry event
func (s *Session) LastEvent() (classifier.Telemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasEvent {
		return classifier.Telemetry{}, false
	}
	return cloneTelemetry(s.lastEvent), true
}

// Devices returns copies of every device record ordered by id
func (s *Session) Devices() []devicestate.Device {
	return s.store.Devices()
}

// Device returns a copy of one device record
func (s *Session) Device(id string) (devicestate.Device, bool) {
	return s.store.Device(id)
}

// History returns the telemetry window, oldest first
func (s *Session) History() []HistoryPoint {
	points := s.history.Snapshot()
	for i := range points {
		points[i] = points[i].clone()
	}
	return points
}

// Send writes a command frame of the given kind
func (s *Session) Send(kind string, payload map[string]any) error {
	return s.gateway.Send(kind, payload)
}

// Health maps the connection onto a health.Status
func (s *Session) Health() health.Status {
	status := health.FromConnection("stream", s.manager.State(), s.manager.Schedule())

	m := &health.Metrics{
		Uptime:            s.clock.Now().Sub(s.started),
		MessagesProcessed: s.frames.Load(),
	}
	if last := s.lastActivity.Load(); last > 0 {
		m.LastActivity = time.Unix(0, last).UTC()
	}
	return status.WithMetrics(m).WithSubStatus(s.historyHealth())
}

// historyHealth reports the telemetry window. Eviction is the window sliding,
// not a fault, so it stays healthy.
func (s *Session) historyHealth() health.Status {
	sum := s.history.Stats().Summary()
	status := health.NewHealthy("history", fmt.Sprintf("%d/%d points, %d evicted (%.0f%%)",
		s.history.Size(), s.history.Capacity(), sum.Evictions, sum.EvictionRate()*100))
	return status.WithMetrics(&health.Metrics{MessagesProcessed: sum.Writes})
}

// onFrame is the single ingestion point for inbound frames. It runs on the
// manager's read goroutine, one frame at a time.
func (s *Session) onFrame(raw []byte) {
	now := s.clock.Now()
	s.frames.Add(1)
	s.lastActivity.Store(now.UnixNano())

	event := classifier.Classify(raw)
	s.metrics.frameClassified(event.Kind())

	if u, ok := event.(classifier.Unrecognized); ok {
		err := errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrParsingFailed, u.Reason),
			"Session", "onFrame", "classify frame")
		s.core.RecordError("classifier", err)
		s.logger.Debug("Frame unrecognized", "reason", u.Reason, "bytes", len(raw))
	}

	out := s.store.Apply(event)

	if t, ok := event.(classifier.Telemetry); ok {
		s.recordTelemetry(t, now)
	}

	observers := s.snapshotObservers()
	if out.Changed() {
		if device, ok := s.store.Device(out.DeviceID); ok {
			for _, o := range observers {
				o.DeviceUpdated(device.Clone())
			}
		}
	}
	if out.Alert != nil {
		s.logger.Info("Alert received",
			"severity", out.Alert.Severity,
			"device_id", out.Alert.DeviceID,
			"message", out.Alert.Message)
		for _, o := range observers {
			o.AlertReceived(*out.Alert)
		}
	}
}

func (s *Session) recordTelemetry(t classifier.Telemetry, now time.Time) {
	s.mu.Lock()
	s.lastEvent = cloneTelemetry(t)
	s.hasEvent = true
	s.mu.Unlock()

	if t.DeviceID == "" {
		return
	}
	if err := s.history.Write(newHistoryPoint(t, now)); err != nil {
		s.logger.Debug("History write failed", "error", err)
	}
}

func (s *Session) stateChanged(state connection.State) {
	for _, o := range s.snapshotObservers() {
		o.ConnectionStateChanged(state)
	}
}

func (s *Session) snapshotObservers() []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Observer(nil), s.observers...)
}

func cloneTelemetry(t classifier.Telemetry) classifier.Telemetry {
	t.Metrics = maps.Clone(t.Metrics)
	t.Faults = maps.Clone(t.Faults)
	return t
}
