// Package connection manages the single authenticated stream between the
// client and the telemetry service.
//
// Manager is an explicit state machine:
//
//	Disconnected -> Connecting -> Open -> Disconnected
//	                    |                      ^
//	                    +---- timeout ---------+
//
// Closing is entered only while Disconnect tears the stream down. Every open
// attempt is gated by the credential guard. Abnormal closures schedule exactly
// one reconnection after the configured delay; a normal closure (1000) never
// does. Dialing, the connect timeout and the reconnect delay run in the
// background, so no method blocks on the network.
//
// Each attempt carries a generation number. Timers, dial results and read
// loops that belong to an older generation are discarded, which is what makes
// Reconnect and Disconnect safe against callbacks already in flight.
package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/c360/devicelink/credential"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/pkg/clock"
	"github.com/c360/devicelink/pkg/timestamp"
	"github.com/c360/devicelink/pkg/tlsutil"
)

// FrameHandler receives every inbound frame, in delivery order, on the read
// goroutine of the live stream.
type FrameHandler func(frame []byte)

// StateListener is told about every state transition, in order.
type StateListener func(State)

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the clock driving timeouts and reconnect delays
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithGuard replaces the credential guard
func WithGuard(guard *credential.Guard) Option {
	return func(m *Manager) {
		if guard != nil {
			m.guard = guard
		}
	}
}

// WithFrameHandler sets the inbound frame handler
func WithFrameHandler(h FrameHandler) Option {
	return func(m *Manager) {
		m.handler = h
	}
}

// WithMetrics records connection metrics on m and errors on the registry's
// core metrics
func WithMetrics(m *Metrics, registry *metric.MetricsRegistry) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
		if registry != nil {
			mgr.core = registry.CoreMetrics()
		}
	}
}

// Manager owns the connection state and reconnect schedule
type Manager struct {
	cfg     Config
	store   credential.Store
	dialer  Dialer
	guard   *credential.Guard
	clock   clock.Clock
	logger  *slog.Logger
	handler FrameHandler
	metrics *Metrics
	core    *metric.Metrics

	mu             sync.Mutex
	state          State
	gen            uint64
	conn           Conn
	identity       credential.Identity
	hasIdentity    bool
	schedule       Schedule
	connectTimer   *clock.Timer
	reconnectTimer *clock.Timer
	cancelDial     context.CancelFunc

	listeners  []StateListener
	pending    []State
	delivering bool

	// writeMu serializes writes; taken after mu, never before
	writeMu sync.Mutex
}

// NewManager creates a Manager. The clock used by the default guard follows
// WithClock.
func NewManager(cfg Config, store credential.Store, dialer Dialer, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: credential store", errors.ErrMissingConfig),
			"Manager", "NewManager", "check dependencies")
	}
	if dialer == nil {
		ws := &WebSocketDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		}
		if !cfg.TLS.IsZero() {
			tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
			if err != nil {
				return nil, err
			}
			ws.TLSClientConfig = tlsConfig
		}
		dialer = ws
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		dialer: dialer,
		clock:  clock.Real(),
		logger: slog.Default(),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.guard == nil {
		m.guard = credential.NewGuard(m.clock)
	}
	m.logger = m.logger.With("component", "connection")
	m.metrics.setState(StateDisconnected)
	return m, nil
}

// OnStateChange registers a listener for state transitions
func (m *Manager) OnStateChange(l StateListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Schedule returns a copy of the reconnect schedule
func (m *Manager) Schedule() Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedule
}

// Identity returns the identity of the current or last attempt
func (m *Manager) Identity() (credential.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.hasIdentity
}

// Connect starts an open attempt. It does nothing when a stream is already
// open or being opened, when no identity is present, or when the guard
// rejects the token.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.connectLocked()
	m.mu.Unlock()
	m.flush()
}

// Reconnect cancels any pending reconnection, closes the live stream and
// starts a fresh attempt.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	stale := m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	m.connectLocked()
	m.mu.Unlock()

	closeQuietly(stale, websocket.CloseNormalClosure, "reconnect")
	m.flush()
}

// Disconnect cancels any pending reconnection and closes the stream with the
// normal-closure code. Nothing reconnects until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.schedule.Attempts = 0
	if m.state == StateDisconnected && m.conn == nil {
		m.gen++
		m.mu.Unlock()
		m.flush()
		return
	}
	m.setStateLocked(StateClosing)
	stale := m.teardownLocked()
	gen := m.gen
	m.mu.Unlock()
	m.flush()

	closeQuietly(stale, websocket.CloseNormalClosure, "client disconnect")
	m.logger.Info("Disconnected")

	m.mu.Lock()
	if m.gen == gen {
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()
	m.flush()
}

// SyncIdentity re-reads the credential store. A different user, tenant or
// role tears the stream down and reconnects as the new identity; a cleared
// identity tears it down; a new token for a disconnected session triggers a
// connect.
func (m *Manager) SyncIdentity() {
	m.mu.Lock()
	id, ok := m.store.Identity()
	var stale Conn

	switch {
	case !ok:
		if m.hasIdentity || m.state != StateDisconnected {
			m.logger.Info("Identity cleared, closing stream")
			m.cancelReconnectLocked()
			m.schedule.Attempts = 0
			stale = m.teardownLocked()
			m.setStateLocked(StateDisconnected)
		}
		m.identity, m.hasIdentity = credential.Identity{}, false

	case m.hasIdentity && m.identity.SamePrincipal(id):
		m.identity.Token = id.Token
		if m.state == StateDisconnected && !m.schedule.Pending {
			m.connectLocked()
		}

	default:
		if m.state != StateDisconnected || m.schedule.Pending {
			m.logger.Info("Identity changed, reconnecting",
				"user_id", id.UserID,
				"tenant_id", id.TenantID,
				"role", id.Role)
			m.cancelReconnectLocked()
			m.schedule.Attempts = 0
			stale = m.teardownLocked()
			m.setStateLocked(StateDisconnected)
		}
		m.connectLocked()
	}
	m.mu.Unlock()

	closeQuietly(stale, websocket.CloseNormalClosure, "identity changed")
	m.flush()
}

// Transmit writes one frame to the live stream. It returns ErrNotConnected
// unless the state is Open.
func (m *Manager) Transmit(data []byte) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen && conn != nil
	m.mu.Unlock()

	if !open {
		m.metrics.frameRefused()
		return errors.WrapInvalid(errors.ErrNotConnected, "Manager", "Transmit", "check stream state")
	}

	m.writeMu.Lock()
	err := conn.WriteMessage(data)
	m.writeMu.Unlock()

	if err != nil {
		wrapped := errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrConnectionLost, err), "Manager", "Transmit", "write frame")
		m.core.RecordError("connection", wrapped)
		return wrapped
	}
	m.metrics.frameSent()
	return nil
}

func (m *Manager) connectLocked() {
	if m.state == StateOpen || m.state == StateConnecting || m.state == StateClosing {
		m.logger.Debug("Connect ignored", "state", m.state)
		return
	}

	id, ok := m.store.Identity()
	if !ok {
		m.identity, m.hasIdentity = credential.Identity{}, false
		m.metrics.credentialRejected(string(credential.ReasonMissing))
		m.logger.Debug("No identity, staying disconnected")
		return
	}
	m.identity, m.hasIdentity = id, true

	result := m.guard.Validate(id.Token)
	m.logger.Debug("Token checked", "token", result)
	if !result.Valid {
		m.metrics.credentialRejected(string(result.Reason))
		m.core.RecordError("connection", result.Err)
		m.logger.Warn("Credential rejected, not connecting",
			"reason", result.Reason,
			"user_id", id.UserID,
			"error", result.Err)
		return
	}

	full, redacted, err := dialURL(m.cfg.Endpoint, id.Token)
	if err != nil {
		m.logger.Error("Cannot build stream URL", "error", err)
		return
	}

	m.cancelReconnectLocked()
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.connectTimer = m.clock.AfterFunc(m.cfg.ConnectTimeout, func() { m.connectTimedOut(gen) })
	m.setStateLocked(StateConnecting)
	m.metrics.connectAttempt()

	m.logger.Info("Connecting",
		"url", redacted,
		"user_id", id.UserID,
		"tenant_id", id.TenantID,
		"attempt", m.schedule.Attempts)

	go m.dial(ctx, gen, full)
}

func (m *Manager) dial(ctx context.Context, gen uint64, url string) {
	conn, err := m.dialer.Dial(ctx, url)
	m.dialFinished(gen, conn, err)
}

func (m *Manager) dialFinished(gen uint64, conn Conn, err error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		closeQuietly(conn, websocket.CloseNormalClosure, "stale attempt")
		return
	}

	m.connectTimer.Stop()
	m.connectTimer = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	if err != nil {
		wrapped := errors.WrapTransient(err, "Manager", "Connect", "open stream")
		m.core.RecordError("connection", wrapped)
		m.logger.Error("Stream open failed", "error", err)
		m.gen++
		m.setStateLocked(StateDisconnected)
		m.scheduleReconnectLocked(websocket.CloseAbnormalClosure)
		m.mu.Unlock()
		m.flush()
		return
	}

	m.conn = conn
	m.schedule = Schedule{}
	m.setStateLocked(StateOpen)
	identity := m.identity

	// Hold writeMu across the unlock so the announcement is the first frame.
	m.writeMu.Lock()
	m.mu.Unlock()

	m.logger.Info("Stream open", "user_id", identity.UserID, "tenant_id", identity.TenantID)
	m.announce(conn, identity)
	m.writeMu.Unlock()

	go m.readLoop(gen, conn)
	m.flush()
}

// announcement is the first frame sent on every open stream
type announcement struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	TenantID  string `json:"tenantId"`
	UserRole  string `json:"userRole"`
	Timestamp string `json:"timestamp"`
}

// announce writes the announcement frame. Caller holds writeMu.
func (m *Manager) announce(conn Conn, id credential.Identity) {
	frame, err := json.Marshal(announcement{
		Type:      "connection",
		UserID:    id.UserID,
		TenantID:  id.TenantID,
		UserRole:  id.Role,
		Timestamp: timestamp.ISO(m.clock.Now()),
	})
	if err != nil {
		m.logger.Error("Cannot encode announcement", "error", err)
		return
	}
	if err := conn.WriteMessage(frame); err != nil {
		m.core.RecordError("connection", errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrConnectionLost, err), "Manager", "announce", "write announcement"))
		m.logger.Error("Announcement not sent", "error", err)
		return
	}
	m.metrics.frameSent()
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.streamEnded(gen, conn, err)
			return
		}

		m.mu.Lock()
		current := gen == m.gen
		m.mu.Unlock()
		if !current {
			return
		}

		m.metrics.frameReceived()
		m.deliver(frame)
	}
}

func (m *Manager) deliver(frame []byte) {
	if m.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Frame handler panicked", "panic", r)
		}
	}()
	m.handler(frame)
}

func (m *Manager) streamEnded(gen uint64, conn Conn, err error) {
	code := closeCodeOf(err)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	m.conn = nil
	m.gen++
	m.setStateLocked(StateDisconnected)
	m.metrics.closed(code)

	if IsNormalClose(code) {
		m.schedule = Schedule{}
		m.logger.Info("Stream closed", "code", code, "reason", CloseCodeName(code))
	} else {
		m.core.RecordError("connection", errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrConnectionLost, err), "Manager", "readLoop", "read frame"))
		m.logger.Warn("Stream closed abnormally",
			"code", code,
			"reason", CloseCodeName(code),
			"error", err)
		m.scheduleReconnectLocked(code)
	}
	m.mu.Unlock()

	closeQuietly(conn, websocket.CloseNormalClosure, "")
	m.flush()
}

func (m *Manager) connectTimedOut(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	m.connectTimer = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.gen++
	m.setStateLocked(StateDisconnected)
	m.metrics.connectTimeout()
	m.core.RecordError("connection", errors.WrapTransient(errors.ErrConnectionTimeout, "Manager", "Connect", "wait for open"))
	m.logger.Warn("Connect timed out", "timeout", m.cfg.ConnectTimeout)
	m.scheduleReconnectLocked(websocket.CloseAbnormalClosure)
	m.mu.Unlock()
	m.flush()
}

// scheduleReconnectLocked arms one reconnection if an identity is still
// present and none is pending.
func (m *Manager) scheduleReconnectLocked(code int) {
	if m.schedule.Pending {
		return
	}
	if _, ok := m.store.Identity(); !ok {
		m.logger.Info("No identity, not reconnecting", "code", code)
		return
	}

	attempts := m.schedule.Attempts + 1
	if m.cfg.Reconnect.Exhausted(attempts) {
		m.logger.Error("Reconnect attempts exhausted", "attempts", m.schedule.Attempts)
		return
	}

	delay := m.cfg.Reconnect.Delay(attempts)
	gen := m.gen
	m.schedule = Schedule{Pending: true, Attempts: attempts, Delay: delay}
	m.reconnectTimer = m.clock.AfterFunc(delay, func() { m.reconnectFired(gen) })
	m.metrics.reconnectScheduled()
	m.logger.Info("Reconnect scheduled", "attempt", attempts, "delay", delay)
}

func (m *Manager) reconnectFired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.schedule.Pending {
		m.mu.Unlock()
		return
	}
	m.schedule.Pending = false
	m.reconnectTimer = nil
	m.connectLocked()
	m.mu.Unlock()
	m.flush()
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.schedule.Pending = false
	m.schedule.Delay = 0
}

// teardownLocked abandons the current attempt or stream and returns the
// connection for the caller to close after unlocking.
func (m *Manager) teardownLocked() Conn {
	if m.connectTimer != nil {
		m.connectTimer.Stop()
		m.connectTimer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	m.gen++
	return conn
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("State change", "from", m.state, "to", s)
	m.state = s
	m.metrics.setState(s)
	m.pending = append(m.pending, s)
}

// flush delivers queued state transitions to listeners outside the lock.
// Only one goroutine delivers at a time, so listeners see transitions in order.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		listeners := slices.Clone(m.listeners)
		m.mu.Unlock()

		for _, s := range batch {
			for _, l := range listeners {
				l(s)
			}
		}

		m.mu.Lock()
	}
	m.delivering = false
	m.mu.Unlock()
}

func closeQuietly(conn Conn, code int, reason string) {
	if conn != nil {
		_ = conn.Close(code, reason)
	}
}
