package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/c360/devicelink/credential"
)

// fakeConn is an in-memory stream. Frames pushed with push are returned by
// ReadMessage; serverClose ends the stream with a close code.
type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	closeErr  *CloseError
	written   [][]byte
	closeCode int
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.closeErr
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

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
	}
	c.mu.Unlock()
	c.end(&CloseError{Code: code, Reason: reason})
	return nil
}

func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

func (c *fakeConn) serverClose(code int) {
	c.end(&CloseError{Code: code})
}

func (c *fakeConn) end(err *CloseError) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) closedWith() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closed
}

// fakeDialer records dial URLs and hands out fakeConns. With block set, Dial
// waits for release or ctx cancellation; with err set, Dial fails.
type fakeDialer struct {
	mu       sync.Mutex
	urls     []string
	conns    []*fakeConn
	err      error
	block    chan struct{}
	returned int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	block, dialErr := d.block, d.err
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.returned++
		d.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if dialErr != nil {
		return nil, dialErr
	}

	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) returns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.returned
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// stateRecorder collects every state transition
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     "u-1",
		"customer_id": "tenant-a",
		"exp":         exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testIdentity(t *testing.T, now time.Time) credential.Identity {
	return credential.Identity{
		UserID:   "u-1",
		TenantID: "tenant-a",
		Role:     "operator",
		Token:    mintToken(t, now.Add(time.Hour)),
	}
}
