package poll

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

// Fetcher returns the decoded API payload with updates since from.
type Fetcher interface {
	Fetch(ctx context.Context, from time.Time) (any, error)
}

// Deliverer sends one text to the notification chat. Errors are
// informational; the implementation has already logged them.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Policy selects how a fetched collection is compared with the previous one.
type Policy string

const (
	// PolicyCollection treats any difference in the ordered collection as new
	// data and notifies every item in it.
	PolicyCollection Policy = "collection"
	// PolicyItem notifies only items whose status differs from the last one
	// seen under the same name.
	PolicyItem Policy = "item"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicyCollection.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyCollection:
		return PolicyCollection, nil
	case PolicyItem:
		return PolicyItem, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want %q or %q)", s, PolicyCollection, PolicyItem)
	}
}

// Controller runs one fetch, validate, diff, notify iteration at a time and
// owns the poll state between iterations. It is not safe for concurrent use;
// the runner calls it from a single goroutine.
type Controller struct {
	fetch   Fetcher
	deliver Deliverer
	policy  Policy
	log     logx.Logger
	now     func() time.Time

	cursor time.Time
	last   []any
	known  map[string]string // item name -> last status (PolicyItem)
}

type ControllerOption func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithCursor sets the initial from_date instead of the current time.
func WithCursor(t time.Time) ControllerOption {
	return func(c *Controller) { c.cursor = t }
}

func NewController(policy Policy, fetch Fetcher, deliver Deliverer, log logx.Logger, opts ...ControllerOption) *Controller {
	if policy == "" {
		policy = PolicyCollection
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{
		fetch:   fetch,
		deliver: deliver,
		policy:  policy,
		log:     log,
		now:     time.Now,
		last:    []any{},
		known:   map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.cursor.IsZero() {
		c.cursor = c.now()
	}
	return c
}

// Cursor returns the from_date the next cycle will use.
func (c *Controller) Cursor() time.Time { return c.cursor }

// Tracked returns how many work items the controller currently remembers.
func (c *Controller) Tracked() int {
	if c.policy == PolicyItem {
		return len(c.known)
	}
	return len(c.last)
}

// RunCycle performs one poll iteration.
//
// Fetch and validation failures leave the state untouched and are reported in
// the outcome. Every item is formatted before anything is sent, so a bad item
// never produces a partial batch. Delivery failures are counted, not fatal.
func (c *Controller) RunCycle(ctx context.Context) (o Outcome) {
	started := c.now()
	o = Outcome{ID: uuid.NewString(), Started: started, Cursor: c.cursor}
	log := c.log.With(logx.String("cycle", o.ID))
	defer func() { o.Took = c.now().Sub(started) }()

	raw, err := c.fetch.Fetch(ctx, c.cursor)
	if err != nil {
		return c.fail(log, o, err)
	}
	items, err := homework.Validate(raw)
	if err != nil {
		return c.fail(log, o, err)
	}
	o.Items = len(items)

	var (
		texts []string
		known map[string]string
	)
	switch c.policy {
	case PolicyItem:
		texts, known, err = c.diffItems(items)
	default:
		if !reflect.DeepEqual(items, c.last) {
			texts, err = formatAll(items)
		}
	}
	if err != nil {
		return c.fail(log, o, err)
	}

	if len(texts) == 0 {
		log.Debug("no new statuses", logx.Int("items", len(items)))
	}
	for _, text := range texts {
		if err := c.deliver.Deliver(ctx, text); err != nil {
			o.Undelivered++
			continue
		}
		o.Delivered++
	}

	switch {
	case len(texts) == 0:
		o.Kind = KindQuiet
	case o.Undelivered > 0:
		o.Kind = KindDeliveryFailure
		log.Warn("some notifications were not delivered", logx.Int("undelivered", o.Undelivered), logx.Int("delivered", o.Delivered))
	default:
		o.Kind = KindNotified
	}

	c.last = items
	if known != nil {
		c.known = known
	}
	c.cursor = started
	o.Cursor = c.cursor
	return o
}

func (c *Controller) fail(log logx.Logger, o Outcome, err error) Outcome {
	o.Kind = classify(err)
	o.Err = err
	fields := []logx.Field{logx.String("kind", o.Kind.String()), logx.Err(err)}
	var wk *homework.WrongKeyError
	// whole response bodies only go out at debug
	if errors.As(err, &wk) && wk.Value != nil && log.Enabled(logx.LevelDebug) {
		fields = append(fields, logx.Any("payload", wk.Value))
	}
	log.Error("poll cycle failed", fields...)
	return o
}

func formatAll(items []any) ([]string, error) {
	texts := make([]string, 0, len(items))
	for _, it := range items {
		text, err := homework.Format(it)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// diffItems returns texts for items whose status changed and the resulting
// name -> status map. Items absent from this response keep their last status.
func (c *Controller) diffItems(items []any) ([]string, map[string]string, error) {
	known := make(map[string]string, len(c.known)+len(items))
	for k, v := range c.known {
		known[k] = v
	}
	var texts []string
	for _, raw := range items {
		it, err := homework.ParseItem(raw)
		if err != nil {
			return nil, nil, err
		}
		text, err := it.Message()
		if err != nil {
			return nil, nil, err
		}
		if prev, ok := known[it.Name]; ok && prev == it.Status {
			continue
		}
		known[it.Name] = it.Status
		texts = append(texts, text)
	}
	return texts, known, nil
}
