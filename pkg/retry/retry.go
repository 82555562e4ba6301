// Package retry bounds and paces retries of calls against a remote store.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Strategy selects how the delay grows between attempts.
type Strategy string

const (
	Linear      Strategy = "linear"
	Exponential Strategy = "exponential"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 2 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds retry attempts and computes the delay before each retry.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	Interval    time.Duration
	Strategy    Strategy

	// Sleep is injectable for tests. Defaults to a context-aware timer.
	Sleep SleepFunc
}

// DefaultPolicy returns 3 attempts with exponential backoff from 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
		Strategy:    Exponential,
	}
}

// NoDelay returns p with a sleep function that returns immediately.
func (p Policy) NoDelay() Policy {
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

// ShouldRetry reports whether attempt (1-based) failing with err deserves
// another try.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.maxAttempts() {
		return false
	}
	return IsTransient(err)
}

// DelayFor returns the wait after the given failed attempt (1-based).
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case Linear:
		return p.Interval * time.Duration(attempt)
	default:
		return p.Interval * time.Duration(1<<(attempt-1))
	}
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, fails permanently, or exhausts the policy.
// Permanent errors are returned unchanged. Exhaustion returns a
// *types.FatalError wrapping the last transient error.
func Do[T any](ctx context.Context, p Policy, name, path string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsTransient(err) {
			return zero, err
		}
		if !p.ShouldRetry(attempt, err) {
			return zero, &types.FatalError{Op: name, Path: path, Attempts: attempt, Err: err}
		}
		if sleepErr := p.sleep(ctx, p.DelayFor(attempt)); sleepErr != nil {
			return zero, fmt.Errorf("%s %s: retry interrupted: %w", name, path, errors.Join(sleepErr, err))
		}
	}
}
