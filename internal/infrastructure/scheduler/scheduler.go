package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/dbvault/internal/config"
)

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// maxWait bounds a single timer. Timers follow the monotonic clock, so a
// suspended host or a wall clock step is only noticed when one fires.
const maxWait = time.Minute

type Logger interface {
	Infof(template string, args ...interface{})
}

// Daily fires once per day at a fixed wall clock instant. It keeps no state
// between runs: the next trigger is always derived from the current time.
type Daily struct {
	schedule cron.Schedule
	location *time.Location
	logger   Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	maxWait  time.Duration
}

type Option func(*Daily)

// WithClock replaces the wall clock and the timer used while waiting.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(d *Daily) {
		d.now = now
		d.after = after
	}
}

func New(at config.TimeOfDay, loc *time.Location, logger Logger, opts ...Option) (*Daily, error) {
	spec := fmt.Sprintf("%d %d %d * * *", at.Second, at.Minute, at.Hour)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse trigger %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}

	d := &Daily{
		schedule: schedule,
		location: loc,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
		maxWait:  maxWait,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Next returns today's trigger instant if it is still ahead of now,
// otherwise the same instant tomorrow.
func (d *Daily) Next(now time.Time) time.Time {
	return d.schedule.Next(now.In(d.location))
}

// Run waits for each trigger and runs job synchronously. It only returns
// when ctx is cancelled, which happens on process termination.
func (d *Daily) Run(ctx context.Context, job func(context.Context)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := d.now()
		next := d.Next(now)
		d.logger.Infof("Next backup cycle at %s (in %s)",
			next.Format(time.RFC3339), next.Sub(now).Round(time.Second))

		if err := d.waitUntil(ctx, next); err != nil {
			return err
		}

		job(ctx)
	}
}

// waitUntil sleeps in steps of at most maxWait until the wall clock reaches
// next.
func (d *Daily) waitUntil(ctx context.Context, next time.Time) error {
	for {
		remaining := next.Sub(d.now())
		if remaining <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(min(remaining, d.maxWait)):
		}
	}
}
