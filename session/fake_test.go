package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/credential"
	"github.com/c360/devicelink/devicestate"
)

// fakeConn is an in-memory stream
type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	code    int
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, &connection.CloseError{Code: c.code}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed stream")
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.end(code)
	return nil
}

func (c *fakeConn) end(code int) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.code = code
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

func (c *fakeConn) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (connection.Conn, error) {
	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// recorder is an Observer that keeps everything it sees
type recorder struct {
	mu      sync.Mutex
	states  []connection.State
	devices []string
	alerts  []string
}

func (r *recorder) observer() ObserverFuncs {
	return ObserverFuncs{
		OnState: func(s connection.State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnDevice: func(d devicestate.Device) {
			r.mu.Lock()
			r.devices = append(r.devices, d.ID)
			r.mu.Unlock()
		},
		OnAlert: func(a classifier.Alert) {
			r.mu.Lock()
			r.alerts = append(r.alerts, a.Message)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (states []connection.State, devices, alerts []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]connection.State(nil), r.states...),
		append([]string(nil), r.devices...),
		append([]string(nil), r.alerts...)
}

func identityFor(t *testing.T, role string, now time.Time) credential.Identity {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     "u-1",
		"customer_id": "tenant-a",
		"exp":         now.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return credential.Identity{UserID: "u-1", TenantID: "tenant-a", Role: role, Token: token}
}
