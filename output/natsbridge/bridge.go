package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/devicestate"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/health"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/pkg/clock"
	"github.com/c360/devicelink/pkg/retry"
	"github.com/c360/devicelink/pkg/timestamp"
	"github.com/c360/devicelink/pkg/tlsutil"
)

// Subject kinds, used as the second subject token and as a metric label
const (
	KindDevice     = "devices"
	KindAlert      = "alerts"
	KindConnection = "connection"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty
const DefaultSubjectPrefix = "devicelink"

// Publisher is the part of *nats.Conn the bridge writes through
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds the NATS connection settings
type Config struct {
	URLs          []string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	ConnectRetry  retry.Config
	Token         string
	Name          string
	TLS           tlsutil.Config
}

type linkState int32

const (
	linkClosed linkState = iota
	linkReconnecting
	linkConnected
)

// Option configures a Bridge
type Option func(*Bridge)

// WithSessionID stamps every message with the session's id
func WithSessionID(id string) Option {
	return func(b *Bridge) {
		b.sessionID = id
	}
}

// WithClock sets the clock used for published_at
func WithClock(clk clock.Clock) Option {
	return func(b *Bridge) {
		if clk != nil {
			b.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records publishes on m and failures on the registry's core metrics
func WithMetrics(m *Metrics, registry *metric.MetricsRegistry) Option {
	return func(b *Bridge) {
		b.metrics = m
		if registry != nil {
			b.core = registry.CoreMetrics()
		}
	}
}

// Bridge publishes session notifications to NATS. It implements
// session.Observer.
type Bridge struct {
	pub       Publisher
	conn      *nats.Conn
	prefix    string
	sessionID string
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics
	core      *metric.Metrics

	link      atomic.Int32
	lastError atomic.Value // string
	closeOnce sync.Once
}

// New creates a Bridge writing through pub. The link is assumed connected.
func New(pub Publisher, prefix string, opts ...Option) *Bridge {
	b := newBridge(prefix, opts...)
	b.pub = pub
	b.setLink(linkConnected)
	return b
}

func newBridge(prefix string, opts ...Option) *Bridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	b := &Bridge{
		prefix: strings.TrimSuffix(prefix, "."),
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "nats-bridge")
	return b
}

// Connect dials NATS and returns a Bridge bound to the connection. The
// initial dial is retried per cfg.ConnectRetry; after that nats.go owns
// reconnection.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Bridge, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: no NATS urls", errors.ErrMissingConfig),
			"Bridge", "Connect", "check config")
	}

	b := newBridge(cfg.SubjectPrefix, opts...)
	natsOpts, err := b.connectionOptions(cfg)
	if err != nil {
		return nil, err
	}
	url := strings.Join(cfg.URLs, ",")

	var conn *nats.Conn
	err = retry.Do(ctx, cfg.ConnectRetry, func() error {
		c, err := nats.Connect(url, natsOpts...)
		if err != nil {
			b.logger.Warn("NATS connect attempt failed", "url", url, "error", err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		b.setLink(linkClosed)
		b.lastError.Store(err.Error())
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrDialFailed, err),
			"Bridge", "Connect", "connect to NATS")
	}

	b.conn = conn
	b.pub = conn
	b.setLink(linkConnected)
	b.logger.Info("Connected to NATS", "url", conn.ConnectedUrlRedacted(), "prefix", b.prefix)
	return b, nil
}

func (b *Bridge) connectionOptions(cfg Config) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(b.handleDisconnect),
		nats.ReconnectHandler(b.handleReconnect),
		nats.ClosedHandler(b.handleClosed),
		nats.ErrorHandler(b.handleError),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(cfg.ReconnectWait))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if !cfg.TLS.IsZero() {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	name := cfg.Name
	if name == "" {
		name = "devicelink"
		if b.sessionID != "" {
			name += "-" + b.sessionID
		}
	}
	opts = append(opts, nats.Name(name))
	return opts, nil
}

// Close drains the NATS connection, if the bridge owns one
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.conn == nil {
			b.setLink(linkClosed)
			return
		}
		if drainErr := b.conn.Drain(); drainErr != nil {
			b.conn.Close()
			err = errors.Wrap(drainErr, "Bridge", "Close", "drain connection")
		}
		b.setLink(linkClosed)
	})
	return err
}

// Subject returns the subject for kind and an optional trailing token
func (b *Bridge) Subject(kind, token string) string {
	if token == "" {
		return b.prefix + "." + kind
	}
	return b.prefix + "." + kind + "." + SubjectToken(token)
}

// ConnectionStateChanged implements session.Observer
func (b *Bridge) ConnectionStateChanged(state connection.State) {
	b.publish(KindConnection, b.Subject(KindConnection, ""), message{
		State: state.String(),
	})
}

// DeviceUpdated implements session.Observer
func (b *Bridge) DeviceUpdated(device devicestate.Device) {
	b.publish(KindDevice, b.Subject(KindDevice, device.ID), message{
		Device: &device,
	})
}

// AlertReceived implements session.Observer
func (b *Bridge) AlertReceived(alert classifier.Alert) {
	severity := alert.Severity
	if severity == "" {
		severity = "unknown"
	}
	b.publish(KindAlert, b.Subject(KindAlert, severity), message{
		Alert: &alertBody{
			Severity: alert.Severity,
			Message:  alert.Message,
			DeviceID: alert.DeviceID,
		},
	})
}

// Health reports the NATS link
func (b *Bridge) Health() health.Status {
	var status health.Status
	switch linkState(b.link.Load()) {
	case linkConnected:
		status = health.NewHealthy("nats-bridge", "Connected")
	case linkReconnecting:
		status = health.NewDegraded("nats-bridge", "Reconnecting")
	default:
		status = health.NewUnhealthy("nats-bridge", "Closed")
	}
	if msg, ok := b.lastError.Load().(string); ok && msg != "" && !status.IsHealthy() {
		status = status.WithError(errors.New(msg))
	}
	return status
}

type message struct {
	Kind        string              `json:"kind"`
	SessionID   string              `json:"session_id,omitempty"`
	PublishedAt string              `json:"published_at"`
	State       string              `json:"state,omitempty"`
	Device      *devicestate.Device `json:"device,omitempty"`
	Alert       *alertBody          `json:"alert,omitempty"`
}

type alertBody struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	DeviceID string `json:"deviceId,omitempty"`
}

func (b *Bridge) publish(kind, subject string, msg message) {
	msg.Kind = kind
	msg.SessionID = b.sessionID
	msg.PublishedAt = timestamp.ISO(b.clock.Now())

	data, err := json.Marshal(msg)
	if err != nil {
		b.metrics.recordFailure(kind)
		b.logger.Warn("Bridge message not encodable", "subject", subject, "error", err)
		return
	}

	if b.pub == nil {
		b.fail(kind, subject, errors.ErrNotConnected)
		return
	}
	if err := b.pub.Publish(subject, data); err != nil {
		b.fail(kind, subject, err)
		return
	}
	b.metrics.recordPublished(kind)
	b.logger.Debug("Published", "subject", subject, "bytes", len(data))
}

func (b *Bridge) fail(kind, subject string, cause error) {
	err := errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, cause),
		"Bridge", "publish", "publish to "+subject)
	b.metrics.recordFailure(kind)
	b.core.RecordError("nats-bridge", err)
	b.logger.Warn("Publish failed", "subject", subject, "error", cause)
}

func (b *Bridge) setLink(state linkState) {
	b.link.Store(int32(state))
	b.metrics.setLink(state)
}

func (b *Bridge) handleDisconnect(_ *nats.Conn, err error) {
	b.setLink(linkReconnecting)
	if err != nil {
		b.lastError.Store(err.Error())
		b.logger.Warn("NATS disconnected", "error", err)
		return
	}
	b.logger.Info("NATS disconnected")
}

func (b *Bridge) handleReconnect(c *nats.Conn) {
	b.setLink(linkConnected)
	b.lastError.Store("")
	b.logger.Info("NATS reconnected", "url", c.ConnectedUrlRedacted())
}

func (b *Bridge) handleClosed(_ *nats.Conn) {
	b.setLink(linkClosed)
	b.logger.Info("NATS connection closed")
}

func (b *Bridge) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	b.logger.Error("NATS error", "error", err)
}

// SubjectToken turns s into a single NATS subject token
func SubjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
