package connection

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/pkg/retry"
	"github.com/c360/devicelink/pkg/tlsutil"
)

// Config holds stream connection settings
type Config struct {
	// Endpoint is the ws:// or wss:// address; the token is appended as a query parameter
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// ConnectTimeout bounds the Connecting state
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`

	// Reconnect sizes the delay after an abnormal closure
	Reconnect retry.Config `json:"reconnect" yaml:"reconnect"`

	// HandshakeTimeout and WriteTimeout are passed to the WebSocket dialer
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// TLS applies to wss:// endpoints
	TLS tlsutil.Config `json:"tls,omitempty" yaml:"tls"`
}

// DefaultConfig returns the stock timings: 10s to open, a fixed 5s reconnect delay
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   10 * time.Second,
		Reconnect:        retry.Fixed(5 * time.Second),
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate", "check endpoint")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Validate", "parse endpoint")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapFatal(fmt.Errorf("%w: endpoint scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"Config", "Validate", "check endpoint scheme")
	}
	if c.ConnectTimeout <= 0 {
		return errors.WrapFatal(fmt.Errorf("%w: connect_timeout must be positive", errors.ErrInvalidConfig),
			"Config", "Validate", "check connect timeout")
	}
	if err := c.Reconnect.Validate(); err != nil {
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Validate", "check reconnect policy")
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	return nil
}

// dialURL returns the endpoint with the token query parameter set, and the
// same URL with the token masked for logs.
func dialURL(endpoint, token string) (string, string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	full := u.String()
	redacted := full
	if token != "" {
		redacted = strings.Replace(full, "token="+url.QueryEscape(token), "token=[TOKEN_HIDDEN]", 1)
	}
	return full, redacted, nil
}
