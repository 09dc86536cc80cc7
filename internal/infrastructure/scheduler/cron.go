package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"IssueTriage/internal/ports"
)

// CronScheduler fires a job on every match of a cron expression. Jobs never
// overlap: a tick that arrives while the previous job runs is skipped.
type CronScheduler struct {
	expr     *cronexpr.Expression
	loc      *time.Location
	runFirst bool
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler parses spec (standard 5-field or cronexpr 6/7-field form)
// evaluated in loc. When runFirst is set the job also runs once right after
// Start.
func NewCronScheduler(spec string, loc *time.Location, runFirst bool) (*CronScheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{expr: expr, loc: loc, runFirst: runFirst, now: time.Now}, nil
}

// Next returns the first activation strictly after from.
func (c *CronScheduler) Next(from time.Time) time.Time {
	return c.expr.Next(from.In(c.loc))
}

// Start launches the scheduling goroutine. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		if c.runFirst {
			job(c.now())
		}
		for {
			next := c.Next(c.now())
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the scheduling goroutine and waits for a running job to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
