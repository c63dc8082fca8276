package poll

import (
	"context"
	"fmt"

	logx "hwbot/pkg/logx"
)

// MalfunctionPrefix starts every failure notification.
const MalfunctionPrefix = "process malfunction: "

// Deduplicator decides whether a failed cycle is worth a chat message.
// It remembers the last failure and stays quiet while the same failure
// repeats; any successful cycle clears that memory.
type Deduplicator struct {
	deliver Deliverer
	log     logx.Logger

	last string // identity of the last failure, "" after a success
}

func NewDeduplicator(deliver Deliverer, log logx.Logger) *Deduplicator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Deduplicator{deliver: deliver, log: log}
}

// Observe consumes one cycle outcome and reports whether a malfunction
// message was emitted for it. It never fails.
func (d *Deduplicator) Observe(ctx context.Context, o Outcome) bool {
	if !o.Failed() || o.Err == nil {
		if d.last != "" {
			d.log.Info("poll recovered")
		}
		d.last = ""
		return false
	}

	id := identity(o.Err)
	if id == d.last {
		d.log.Debug("repeated failure suppressed", logx.String("kind", o.Kind.String()))
		return false
	}
	d.last = id
	// Delivery errors are logged by the deliverer; the failure stays remembered either way.
	_ = d.deliver.Deliver(ctx, MalfunctionPrefix+o.Err.Error())
	return true
}

// Last returns the identity of the remembered failure, "" if none.
func (d *Deduplicator) Last() string { return d.last }

// identity is the failure kind (concrete error type) plus its message.
func identity(err error) string {
	return fmt.Sprintf("%T: %s", err, err.Error())
}
