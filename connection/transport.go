package connection

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/devicelink/errors"
)

// Conn is one established stream
type Conn interface {
	// ReadMessage blocks for the next data frame. When the stream ends it
	// returns a *CloseError carrying the close code.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame
	WriteMessage(data []byte) error

	// Close sends a close frame with code and reason and releases the stream
	Close(code int, reason string) error
}

// Dialer opens streams. Implementations must return when ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseError reports how a stream ended
type CloseError struct {
	Code   int
	Reason string
	Err    error
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("stream closed: %d (%s): %s", e.Code, CloseCodeName(e.Code), e.Reason)
	}
	return fmt.Sprintf("stream closed: %d (%s)", e.Code, CloseCodeName(e.Code))
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// closeCodeOf extracts the close code from a read error; anything that is
// not a close frame counts as an abnormal closure.
func closeCodeOf(err error) int {
	var ce *CloseError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// WebSocketDialer dials with gorilla/websocket
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	TLSClientConfig  *tls.Config
}

// Dial implements Dialer
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig:  d.TLSClientConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w: %w (status %d)", errors.ErrDialFailed, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("%w: %w", errors.ErrDialFailed, err)
		}
		return nil, errors.WrapTransient(err, "WebSocketDialer", "Dial", "open stream")
	}

	return &wsConn{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if stderrors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text, Err: err}
		}
		return nil, &CloseError{Code: websocket.CloseAbnormalClosure, Reason: err.Error(), Err: err}
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
