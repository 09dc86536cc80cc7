package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrRateLimited marks a provider-side rejection that is worth retrying.
var ErrRateLimited = errors.New("rate limited")

// DefaultBackoff is the pause before retrying a rate-limited call.
const DefaultBackoff = time.Second

// Options configures a Limiter. MaxCalls == 0 disables limiting.
type Options struct {
	MaxCalls int
	Per      time.Duration
	Backoff  time.Duration
	// MaxRetries caps rate-limit retries; 0 retries forever.
	MaxRetries int

	// OnWait and OnRetry are optional observation hooks.
	OnWait  func(time.Duration)
	OnRetry func(error)
}

// Limiter admits at most MaxCalls call starts per sliding window of Per and
// retries calls rejected with a rate-limit error.
type Limiter struct {
	opts Options

	mu     sync.Mutex
	stamps []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New builds a Limiter using the wall clock.
func New(opts Options) *Limiter {
	if opts.Per <= 0 {
		opts.Per = time.Minute
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Limiter{opts: opts, now: time.Now, sleep: sleepCtx}
}

// Enabled reports whether the limiter throttles anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.opts.MaxCalls > 0
}

// Do runs fn under the limiter. A disabled limiter calls fn exactly once.
func Do[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	if !l.Enabled() {
		return fn(ctx)
	}

	var zero T
	for attempt := 0; ; attempt++ {
		if err := l.acquire(ctx); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil || !IsRateLimited(err) {
			return out, err
		}
		if l.opts.MaxRetries > 0 && attempt >= l.opts.MaxRetries {
			return zero, err
		}

		if l.opts.OnRetry != nil {
			l.opts.OnRetry(err)
		}
		if err := l.sleep(ctx, l.opts.Backoff); err != nil {
			return zero, err
		}
	}
}

// acquire blocks until a window slot is free and records the call start.
func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		l.evict(now)
		if len(l.stamps) < l.opts.MaxCalls {
			l.stamps = append(l.stamps, now)
			return nil
		}

		wait := l.stamps[0].Add(l.opts.Per).Sub(now)
		if l.opts.OnWait != nil {
			l.opts.OnWait(wait)
		}
		// Callers queue behind the lock so the ledger is re-read after the wait.
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.opts.Per)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// IsRateLimited reports whether err signals a provider rate limit.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
