// Package retry provides backoff policies for reconnection and a small retry
// helper for one-off startup operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config describes a backoff policy.
//
// A Multiplier of 1 yields a fixed delay, which is what the stream reconnect
// path uses by default.
type Config struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`   // 0 = unlimited for Delay, run once for Do
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"` // Delay before the first retry
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`         // Cap for the computed delay
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`       // Growth per attempt
	AddJitter    bool          `json:"add_jitter" yaml:"add_jitter"`       // Add up to 25% random jitter
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Fixed returns an unlimited policy that always waits d
func Fixed(d time.Duration) Config {
	return Config{
		InitialDelay: d,
		MaxDelay:     d,
		Multiplier:   1.0,
	}
}

// Validate checks the policy for values that cannot produce a sane delay
func (c Config) Validate() error {
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	if c.Multiplier < 1 && c.Multiplier != 0 {
		return errors.New("retry: Multiplier must be >= 1")
	}
	if c.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts cannot be negative")
	}
	return nil
}

// Exhausted reports whether attempt (1-based) exceeds MaxAttempts.
// MaxAttempts of 0 never exhausts.
func (c Config) Exhausted(attempt int) bool {
	return c.MaxAttempts > 0 && attempt > c.MaxAttempts
}

// Delay returns the wait before retry number attempt (1-based). Attempt 1
// waits InitialDelay; each further attempt multiplies by Multiplier, capped at
// MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	if multiplier > 1000 {
		multiplier = 1000
	}

	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		next := float64(delay) * multiplier
		if c.MaxDelay > 0 && next > float64(c.MaxDelay) {
			delay = c.MaxDelay
			break
		}
		if next > float64(time.Duration(1<<63-1)) {
			delay = time.Duration(1<<63 - 1)
			break
		}
		delay = time.Duration(next)
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	if c.AddJitter && delay >= 4 {
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
		randMu.Unlock()
		delay += jitter
	}

	return delay
}

// Do executes fn until it succeeds, returns a NonRetryable error, the context
// ends, or MaxAttempts is reached.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
