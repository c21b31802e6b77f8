// Package retry provides the bounded, jittered backoff used at the fetch and
// storage-submission boundaries.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Config controls a Policy. Zero values fall back to defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Policy implements exponential backoff with jitter.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
}

// permanent marks an error that must not be retried.
type permanent struct {
	err error
}

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// New builds a policy with sane defaults.
func New(cfg Config) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &Policy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		sleep:       sleepContext,
	}
}

// MaxAttempts reports the total number of attempts Do will make.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable after the given attempt (1-based).
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm permanent
	return !errors.As(err, &perm)
}

// Backoff returns the wait duration before the next attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

// Do runs fn until it succeeds, returns a permanent error, or attempts run out.
// The last error is returned unwrapped from any Permanent marker.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if !p.ShouldRetry(err, attempt) {
			break
		}
		if sleepErr := p.sleep(ctx, p.Backoff(attempt-1)); sleepErr != nil {
			return fmt.Errorf("retry wait: %w", sleepErr)
		}
	}
	var perm permanent
	if errors.As(err, &perm) {
		return perm.err
	}
	return err
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
