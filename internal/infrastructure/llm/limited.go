package llm

import (
	"context"

	"IssueTriage/internal/ports"
	"IssueTriage/internal/ratelimit"
)

// LimitedCompleter runs every completion through a rate limiter.
type LimitedCompleter struct {
	next    ports.Completer
	limiter *ratelimit.Limiter
}

var _ ports.Completer = (*LimitedCompleter)(nil)

// NewLimitedCompleter wraps next; a nil or disabled limiter passes through.
func NewLimitedCompleter(next ports.Completer, limiter *ratelimit.Limiter) *LimitedCompleter {
	return &LimitedCompleter{next: next, limiter: limiter}
}

// Complete delegates to the wrapped completer under the limiter.
func (l *LimitedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return ratelimit.Do(ctx, l.limiter, func(ctx context.Context) (string, error) {
		return l.next.Complete(ctx, system, user)
	})
}
