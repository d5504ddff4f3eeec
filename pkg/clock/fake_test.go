package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_Now(t *testing.T) {
	c := Fake(epoch)
	assert.True(t, c.Now().Equal(epoch))

	c.Advance(5 * time.Second)
	assert.True(t, c.Now().Equal(epoch.Add(5*time.Second)))
}

func TestFakeClock_After(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(3 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before deadline")
	default:
	}

	c.Advance(2 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at exact deadline")
	}
}

func TestFakeClock_AfterFunc(t *testing.T) {
	c := Fake(epoch)
	var called atomic.Int32
	c.AfterFunc(2*time.Second, func() { called.Add(1) })

	c.Advance(time.Second)
	assert.Equal(t, int32(0), called.Load())

	c.Advance(time.Second)
	assert.Equal(t, int32(1), called.Load())

	// One-shot
	c.Advance(10 * time.Second)
	assert.Equal(t, int32(1), called.Load())
}

func TestFakeClock_AfterFuncZeroDuration(t *testing.T) {
	c := Fake(epoch)
	var called atomic.Bool
	c.AfterFunc(0, func() { called.Store(true) })
	assert.True(t, called.Load())
}

func TestFakeClock_Stop(t *testing.T) {
	c := Fake(epoch)
	var called atomic.Bool
	timer := c.AfterFunc(time.Second, func() { called.Store(true) })

	assert.Equal(t, 1, c.PendingCount())
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, c.PendingCount())

	c.Advance(2 * time.Second)
	assert.False(t, called.Load())
}

func TestFakeClock_DeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFakeClock_CallbackSchedulesAnother(t *testing.T) {
	c := Fake(epoch)
	var fired atomic.Int32
	c.AfterFunc(time.Second, func() {
		fired.Add(1)
		c.AfterFunc(time.Second, func() { fired.Add(1) })
	})

	c.Advance(time.Second)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 1, c.PendingCount())

	c.Advance(time.Second)
	assert.Equal(t, int32(2), fired.Load())
}

func TestFakeClock_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not fire")
	}
}

func TestTimer_NilStop(t *testing.T) {
	var timer *Timer
	assert.False(t, timer.Stop())
}
