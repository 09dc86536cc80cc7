package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeLimiter(opts Options) (*Limiter, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(opts)
	l.now = clk.Now
	l.sleep = clk.Sleep
	return l, clk
}

func call(ctx context.Context, l *Limiter, calls *int) error {
	_, err := Do(ctx, l, func(context.Context) (string, error) {
		*calls++
		return "ok", nil
	})
	return err
}

func TestLimiterDelaysCallsBeyondWindow(t *testing.T) {
	t.Parallel()

	l, clk := newFakeLimiter(Options{MaxCalls: 3, Per: time.Second})
	start := clk.Now()

	calls := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, call(context.Background(), l, &calls))
	}
	assert.Empty(t, clk.slept, "first window must not wait")

	require.NoError(t, call(context.Background(), l, &calls))
	require.NoError(t, call(context.Background(), l, &calls))

	assert.Equal(t, 5, calls)
	assert.GreaterOrEqual(t, clk.Now().Sub(start), time.Second)
	assert.NotEmpty(t, clk.slept)
}

func TestLimiterSlidingWindowExpires(t *testing.T) {
	t.Parallel()

	l, clk := newFakeLimiter(Options{MaxCalls: 2, Per: time.Second})
	calls := 0
	require.NoError(t, call(context.Background(), l, &calls))
	clk.Advance(600 * time.Millisecond)
	require.NoError(t, call(context.Background(), l, &calls))

	// Oldest stamp is 600ms old: the third call waits only the remaining 400ms.
	require.NoError(t, call(context.Background(), l, &calls))
	require.Len(t, clk.slept, 1)
	assert.Equal(t, 400*time.Millisecond, clk.slept[0])
}

func TestLimiterDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	l, clk := newFakeLimiter(Options{MaxCalls: 0, Per: time.Second})
	calls := 0
	for i := 0; i < 50; i++ {
		require.NoError(t, call(context.Background(), l, &calls))
	}
	assert.Equal(t, 50, calls)
	assert.Empty(t, clk.slept)

	// A disabled limiter does not retry either.
	attempts := 0
	_, err := Do(context.Background(), l, func(context.Context) (int, error) {
		attempts++
		return 0, ErrRateLimited
	})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, attempts)
}

func TestLimiterRetriesRateLimitedCalls(t *testing.T) {
	t.Parallel()

	retries := 0
	l, clk := newFakeLimiter(Options{
		MaxCalls: 10,
		Per:      time.Minute,
		OnRetry:  func(error) { retries++ },
	})

	attempts := 0
	out, err := Do(context.Background(), l, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", fmt.Errorf("chat completion: %w", ErrRateLimited)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retries)
	assert.Equal(t, []time.Duration{DefaultBackoff, DefaultBackoff}, clk.slept)
}

func TestLimiterDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	l, _ := newFakeLimiter(Options{MaxCalls: 10, Per: time.Minute})
	boom := errors.New("boom")

	attempts := 0
	_, err := Do(context.Background(), l, func(context.Context) (string, error) {
		attempts++
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestLimiterMaxRetries(t *testing.T) {
	t.Parallel()

	l, _ := newFakeLimiter(Options{MaxCalls: 10, Per: time.Minute, MaxRetries: 2})
	attempts := 0
	_, err := Do(context.Background(), l, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("upstream said 429 Too Many Requests")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestLimiterStopsOnCancel(t *testing.T) {
	t.Parallel()

	l, _ := newFakeLimiter(Options{MaxCalls: 1, Per: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	require.NoError(t, call(ctx, l, &calls))
	cancel()
	require.ErrorIs(t, call(ctx, l, &calls), context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRateLimited(fmt.Errorf("wrap: %w", ErrRateLimited)))
	assert.True(t, IsRateLimited(errors.New("Error code: 429")))
	assert.True(t, IsRateLimited(errors.New("Rate limit reached for requests")))
	assert.False(t, IsRateLimited(errors.New("connection reset")))
	assert.False(t, IsRateLimited(nil))
}

func TestLimiterRealClock(t *testing.T) {
	t.Parallel()

	l := New(Options{MaxCalls: 3, Per: 200 * time.Millisecond})
	start := time.Now()
	calls := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, call(context.Background(), l, &calls))
	}
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
