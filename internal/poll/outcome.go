package poll

import (
	"errors"
	"time"

	"hwbot/internal/homework"
)

// Kind tags the result of one poll cycle.
type Kind int

const (
	// KindQuiet: the collection did not change, nothing was sent.
	KindQuiet Kind = iota
	// KindNotified: changes were found and every notification was delivered.
	KindNotified
	// KindDeliveryFailure: changes were found but some sends failed.
	// The cycle still counts as a success.
	KindDeliveryFailure
	// KindValidationFailure: the payload or an item did not match the contract.
	KindValidationFailure
	// KindTransportFailure: the API could not be reached or answered non-200.
	KindTransportFailure
)

func (k Kind) String() string {
	switch k {
	case KindQuiet:
		return "quiet"
	case KindNotified:
		return "notified"
	case KindDeliveryFailure:
		return "delivery_failure"
	case KindValidationFailure:
		return "validation_failure"
	case KindTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of Controller.RunCycle.
type Outcome struct {
	ID      string
	Kind    Kind
	Started time.Time
	Took    time.Duration

	Items       int // size of the fetched collection
	Delivered   int
	Undelivered int

	// Err is set for validation and transport failures only.
	Err error
	// Cursor is the from_date the next cycle will use.
	Cursor time.Time
}

// Failed reports whether the cycle ended in a failure the operator should hear about.
func (o Outcome) Failed() bool {
	return o.Kind == KindValidationFailure || o.Kind == KindTransportFailure
}

func classify(err error) Kind {
	if errors.Is(err, homework.ErrAPI) || errors.Is(err, homework.ErrWrongStatusCode) {
		return KindTransportFailure
	}
	return KindValidationFailure
}

// CycleEvent is the payload published on the event bus after every cycle.
type CycleEvent struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Started     time.Time     `json:"started"`
	Took        time.Duration `json:"took"`
	Items       int           `json:"items"`
	Delivered   int           `json:"delivered"`
	Undelivered int           `json:"undelivered"`
	Tracked     int           `json:"tracked"`
	Error       string        `json:"error,omitempty"`
	// Alerted is true when a malfunction message was sent for this cycle.
	Alerted bool      `json:"alerted"`
	Cursor  time.Time `json:"cursor"`
}

func (o Outcome) event(alerted bool) CycleEvent {
	ev := CycleEvent{
		ID:          o.ID,
		Kind:        o.Kind.String(),
		Started:     o.Started,
		Took:        o.Took,
		Items:       o.Items,
		Delivered:   o.Delivered,
		Undelivered: o.Undelivered,
		Alerted:     alerted,
		Cursor:      o.Cursor,
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}
