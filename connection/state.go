package connection

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle position of the single stream connection
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

// String returns the lower-case state name used in logs and metrics
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Schedule is the reconnect bookkeeping owned by the Manager. Attempts counts
// consecutive abnormal closures and resets on a successful open or a clean
// close.
type Schedule struct {
	Pending  bool
	Attempts int
	Delay    time.Duration
}

// CloseCodeName returns a human name for a close code
func CloseCodeName(code int) string {
	switch code {
	case websocket.CloseNormalClosure:
		return "normal closure"
	case websocket.CloseGoingAway:
		return "going away"
	case websocket.CloseProtocolError:
		return "protocol error"
	case websocket.CloseUnsupportedData:
		return "unsupported data"
	case websocket.CloseNoStatusReceived:
		return "no status"
	case websocket.CloseAbnormalClosure:
		return "abnormal closure"
	case websocket.CloseTLSHandshake:
		return "TLS handshake failure"
	default:
		return "unknown"
	}
}

// IsNormalClose reports whether code is the normal-closure code. Every other
// code, 1006 and 1015 included, counts as abnormal.
func IsNormalClose(code int) bool {
	return code == websocket.CloseNormalClosure
}
