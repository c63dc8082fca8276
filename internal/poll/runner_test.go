package poll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/eventbus"
	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

func TestStepPublishesCycleEvent(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	f := &scriptedFetcher{results: []fetchResult{{err: &homework.StatusCodeError{Code: 500}}}}
	d := &recordingDeliverer{}
	r := NewRunner(NewController(PolicyCollection, f, d, logx.Nop()), NewDeduplicator(d, logx.Nop()), Every(time.Hour), bus, logx.Nop())

	o := r.Step(context.Background())
	assert.Equal(t, KindTransportFailure, o.Kind)

	e := <-events
	require.Equal(t, eventbus.TypeCycle, e.Type)
	ev, ok := e.Data.(CycleEvent)
	require.True(t, ok)
	assert.Equal(t, "transport_failure", ev.Kind)
	assert.True(t, ev.Alerted)
	assert.Equal(t, o.ID, ev.ID)
	assert.Contains(t, ev.Error, "500")
}

func TestStepSkipsAlertWhenCanceled(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{err: &homework.APIError{Err: context.Canceled}}}}
	d := &recordingDeliverer{}
	dd := NewDeduplicator(d, logx.Nop())
	r := NewRunner(NewController(PolicyCollection, f, d, logx.Nop()), dd, Every(time.Hour), nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Step(ctx)

	assert.Empty(t, d.sent())
	assert.Empty(t, dd.Last())
}

func TestRunFirstCycleImmediateAndStopsOnCancel(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	f := fetchBodies(`{"homeworks": [{"homework_name":"hw1","status":"reviewing"}]}`)
	d := &recordingDeliverer{}
	r := NewRunner(NewController(PolicyCollection, f, d, logx.Nop()), NewDeduplicator(d, logx.Nop()), Every(time.Hour), bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case e := <-events:
		ev := e.Data.(CycleEvent)
		assert.Equal(t, "notified", ev.Kind)
		assert.Equal(t, 1, ev.Tracked)
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run immediately")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{msgHW1Reviewing}, d.sent())
}
