package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

func TestPolicy_DelayFor(t *testing.T) {
	linear := Policy{MaxAttempts: 3, Interval: time.Second, Strategy: Linear}
	assert.Equal(t, 1*time.Second, linear.DelayFor(1))
	assert.Equal(t, 2*time.Second, linear.DelayFor(2))
	assert.Equal(t, 3*time.Second, linear.DelayFor(3))

	exp := Policy{MaxAttempts: 3, Interval: time.Second, Strategy: Exponential}
	assert.Equal(t, 1*time.Second, exp.DelayFor(1))
	assert.Equal(t, 2*time.Second, exp.DelayFor(2))
	assert.Equal(t, 4*time.Second, exp.DelayFor(3))
	assert.Equal(t, 1*time.Second, exp.DelayFor(0))
}

func TestPolicy_ShouldRetry(t *testing.T) {
	p := DefaultPolicy()
	transient := &types.StatusError{Code: 503}

	assert.True(t, p.ShouldRetry(1, transient))
	assert.True(t, p.ShouldRetry(2, transient))
	assert.False(t, p.ShouldRetry(3, transient))
	assert.False(t, p.ShouldRetry(1, os.ErrNotExist))
	assert.False(t, p.ShouldRetry(1, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"rate limited", &types.StatusError{Code: 429}, Transient},
		{"server error", &types.StatusError{Code: 502}, Transient},
		{"not found status", &types.StatusError{Code: 404}, Permanent},
		{"forbidden status", &types.StatusError{Code: 403}, Permanent},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), Transient},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, Transient},
		{"closed", net.ErrClosed, Transient},
		{"short read", io.ErrUnexpectedEOF, Transient},
		{"not exist", &os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, Permanent},
		{"permission", os.ErrPermission, Permanent},
		{"validation", &types.ValidationError{Message: "bad"}, Permanent},
		{"authentication", &types.AuthenticationError{Server: "s", Reason: "disabled"}, Permanent},
		{"remote transient", &types.RemoteError{Op: "list", Path: "a", Transient: true, Err: errors.New("x")}, Transient},
		{"remote permanent", &types.RemoteError{Op: "list", Path: "a", Err: syscall.ECONNRESET}, Permanent},
		{"canceled", context.Canceled, Permanent},
		{"unknown", errors.New("boom"), Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	p := DefaultPolicy()
	var delays []time.Duration
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	result, err := Do(context.Background(), p, "list", "a", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &types.StatusError{Code: 503}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestDo_ExhaustionReturnsFatalError(t *testing.T) {
	p := DefaultPolicy().NoDelay()

	calls := 0
	_, err := Do(context.Background(), p, "list", `\\srv\share\a`, func(ctx context.Context) (int, error) {
		calls++
		return 0, syscall.ECONNRESET
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var fatal *types.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 3, fatal.Attempts)
	assert.Equal(t, `\\srv\share\a`, fatal.Path)
	assert.ErrorIs(t, err, syscall.ECONNRESET)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	p := DefaultPolicy().NoDelay()

	calls := 0
	_, err := Do(context.Background(), p, "list", "a", func(ctx context.Context) (int, error) {
		calls++
		return 0, os.ErrNotExist
	})

	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	_, err := Do(ctx, p, "list", "a", func(ctx context.Context) (int, error) {
		calls++
		return 0, &types.StatusError{Code: 500}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_DefaultSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	p := Policy{MaxAttempts: 3, Interval: time.Hour, Strategy: Linear}
	_, err := Do(ctx, p, "list", "a", func(ctx context.Context) (int, error) {
		return 0, &types.StatusError{Code: 500}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
