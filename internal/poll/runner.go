package poll

import (
	"context"
	"time"

	"hwbot/internal/eventbus"
	logx "hwbot/pkg/logx"
)

// Runner drives the controller on a schedule: run a cycle, let the
// deduplicator judge a failure, publish the outcome, wait, repeat.
// Cycles never overlap. Run returns when ctx is canceled.
type Runner struct {
	ctrl  *Controller
	dedup *Deduplicator
	sched Schedule
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRunner(ctrl *Controller, dedup *Deduplicator, sched Schedule, bus eventbus.Bus, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{ctrl: ctrl, dedup: dedup, sched: sched, bus: bus, log: log}
}

// Step runs a single cycle and feeds its outcome to the deduplicator.
func (r *Runner) Step(ctx context.Context) Outcome {
	o := r.ctrl.RunCycle(ctx)
	if ctx.Err() != nil {
		// Shutting down: an aborted fetch is not a malfunction worth reporting.
		return o
	}
	alerted := r.dedup.Observe(ctx, o)

	fields := []logx.Field{
		logx.String("cycle", o.ID),
		logx.String("kind", o.Kind.String()),
		logx.Int("items", o.Items),
		logx.Duration("took", o.Took),
	}
	if o.Failed() {
		r.log.Debug("cycle done", append(fields, logx.Bool("alerted", alerted))...)
	} else {
		r.log.Debug("cycle done", append(fields, logx.Int("delivered", o.Delivered), logx.Int("undelivered", o.Undelivered))...)
	}
	if r.bus != nil {
		ev := o.event(alerted)
		ev.Tracked = r.ctrl.Tracked()
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeCycle, Time: time.Now(), Data: ev})
	}
	return o
}

// Run executes cycles until ctx is canceled. The first cycle starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("poll loop started", logx.String("schedule", r.sched.String()), logx.Time("cursor", r.ctrl.Cursor()))
	defer r.log.Info("poll loop stopped")

	for {
		r.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}

		next := r.sched.Next(time.Now())
		r.log.Debug("next cycle scheduled", logx.Time("at", next))
		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
