package poll

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

type fetchResult struct {
	body string // JSON; ignored when err is set
	err  error
}

// scriptedFetcher replays results in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	froms   []time.Time
}

func (f *scriptedFetcher) Fetch(ctx context.Context, from time.Time) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.froms = append(f.froms, from)
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	if r.err != nil {
		return nil, r.err
	}
	var v any
	if err := json.Unmarshal([]byte(r.body), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func fetchBodies(bodies ...string) *scriptedFetcher {
	f := &scriptedFetcher{}
	for _, b := range bodies {
		f.results = append(f.results, fetchResult{body: b})
	}
	return f
}

type recordingDeliverer struct {
	mu     sync.Mutex
	texts  []string
	failOn map[string]bool
}

func (d *recordingDeliverer) Deliver(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOn[text] {
		return errors.New("telegram unavailable")
	}
	d.texts = append(d.texts, text)
	return nil
}

func (d *recordingDeliverer) sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

// stepClock advances by one second on every call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
