package command

import (
	"encoding/json"
	"log/slog"

	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/credential"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/pkg/clock"
	"github.com/c360/devicelink/pkg/timestamp"
)

// Envelope keys set by the gateway. They overwrite payload keys of the same name.
const (
	KeyType      = "type"
	KeyUserID    = "userId"
	KeyTenantID  = "tenantId"
	KeyTimestamp = "timestamp"
)

// Refusal reasons, used as the reason label on the refused counter
const (
	ReasonNotConnected = "not_connected"
	ReasonNoIdentity   = "no_identity"
	ReasonInvalid      = "invalid"
	ReasonWriteFailed  = "write_failed"
)

// Link is the slice of the connection manager the gateway needs
type Link interface {
	State() connection.State
	Identity() (credential.Identity, bool)
	Transmit(data []byte) error
}

// Option configures a Gateway
type Option func(*Gateway)

// WithClock sets the clock used for envelope timestamps
func WithClock(clk clock.Clock) Option {
	return func(g *Gateway) {
		if clk != nil {
			g.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records sends on m and write failures on the registry's core metrics
func WithMetrics(m *Metrics, registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		g.metrics = m
		if registry != nil {
			g.core = registry.CoreMetrics()
		}
	}
}

// Gateway serializes control intents onto the live stream
type Gateway struct {
	link    Link
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics
	core    *metric.Metrics
}

// NewGateway creates a Gateway writing through link
func NewGateway(link Link, opts ...Option) *Gateway {
	g := &Gateway{
		link:   link,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "command-gateway")
	return g
}

// Send envelopes payload as a frame of the given kind and writes it.
// The payload map is not modified.
func (g *Gateway) Send(kind string, payload map[string]any) error {
	if kind == "" {
		g.metrics.recordRefused(kind, ReasonInvalid)
		return errors.WrapInvalid(errors.ErrInvalidData, "Gateway", "Send", "check command kind")
	}

	if state := g.link.State(); state != connection.StateOpen {
		g.metrics.recordRefused(kind, ReasonNotConnected)
		g.logger.Warn("Command refused, stream not open", "kind", kind, "state", state)
		return errors.WrapInvalid(errors.ErrNotConnected, "Gateway", "Send", "check stream state")
	}

	id, ok := g.link.Identity()
	if !ok {
		g.metrics.recordRefused(kind, ReasonNoIdentity)
		g.logger.Warn("Command refused, no session identity", "kind", kind)
		return errors.WrapInvalid(errors.ErrNoIdentity, "Gateway", "Send", "resolve sender")
	}

	frame, err := json.Marshal(g.envelope(kind, payload, id))
	if err != nil {
		g.metrics.recordRefused(kind, ReasonInvalid)
		return errors.WrapInvalid(err, "Gateway", "Send", "encode command")
	}

	if err := g.link.Transmit(frame); err != nil {
		if errors.Is(err, errors.ErrNotConnected) {
			// Stream closed between the state check and the write
			g.metrics.recordRefused(kind, ReasonNotConnected)
			g.logger.Warn("Command refused, stream not open", "kind", kind)
			return err
		}
		g.metrics.recordRefused(kind, ReasonWriteFailed)
		g.core.RecordError("command-gateway", err)
		g.logger.Error("Command write failed", "kind", kind, "error", err)
		return err
	}

	g.metrics.recordSent(kind)
	g.logger.Debug("Command sent", "kind", kind, "bytes", len(frame))
	return nil
}

func (g *Gateway) envelope(kind string, payload map[string]any, id credential.Identity) map[string]any {
	env := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		env[k] = v
	}
	env[KeyType] = kind
	env[KeyUserID] = id.UserID
	env[KeyTenantID] = id.TenantID
	env[KeyTimestamp] = timestamp.ISO(g.clock.Now())
	return env
}
