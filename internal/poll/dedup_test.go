package poll

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

func failed(err error) Outcome {
	return Outcome{Kind: classify(err), Err: err}
}

func TestDeduplicatorSuppressesRepeats(t *testing.T) {
	d := &recordingDeliverer{}
	dd := NewDeduplicator(d, logx.Nop())
	ctx := context.Background()

	assert.True(t, dd.Observe(ctx, failed(&homework.StatusCodeError{Code: 500})))
	assert.False(t, dd.Observe(ctx, failed(&homework.StatusCodeError{Code: 500})))
	assert.True(t, dd.Observe(ctx, failed(&homework.StatusCodeError{Code: 503})))

	sent := d.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, MalfunctionPrefix+"endpoint unavailable: http status 500", sent[0])
	assert.Equal(t, MalfunctionPrefix+"endpoint unavailable: http status 503", sent[1])
}

func TestDeduplicatorRecoveryResetsMemory(t *testing.T) {
	d := &recordingDeliverer{}
	dd := NewDeduplicator(d, logx.Nop())
	ctx := context.Background()
	e500 := &homework.StatusCodeError{Code: 500}

	dd.Observe(ctx, failed(e500))
	assert.NotEmpty(t, dd.Last())
	assert.False(t, dd.Observe(ctx, Outcome{Kind: KindQuiet}))
	assert.Empty(t, dd.Last())
	assert.True(t, dd.Observe(ctx, failed(e500)), "same failure after recovery is reported again")
	assert.Len(t, d.sent(), 2)
}

func TestDeduplicatorDeliveryFailureCountsAsSuccess(t *testing.T) {
	d := &recordingDeliverer{}
	dd := NewDeduplicator(d, logx.Nop())
	ctx := context.Background()
	e500 := &homework.StatusCodeError{Code: 500}

	dd.Observe(ctx, failed(e500))
	dd.Observe(ctx, Outcome{Kind: KindDeliveryFailure, Undelivered: 1})
	assert.True(t, dd.Observe(ctx, failed(e500)))
}

func TestDeduplicatorSameMessageDifferentType(t *testing.T) {
	d := &recordingDeliverer{}
	dd := NewDeduplicator(d, logx.Nop())
	ctx := context.Background()

	assert.True(t, dd.Observe(ctx, failed(&homework.APIError{Err: errors.New("boom")})))
	assert.True(t, dd.Observe(ctx, failed(errors.New(homework.ErrAPI.Error()))),
		"identity includes the error type, not just the text")
}

func TestDeduplicatorRemembersEvenIfAlertNotDelivered(t *testing.T) {
	e := &homework.StatusCodeError{Code: 502}
	d := &recordingDeliverer{failOn: map[string]bool{MalfunctionPrefix + e.Error(): true}}
	dd := NewDeduplicator(d, logx.Nop())
	ctx := context.Background()

	assert.True(t, dd.Observe(ctx, failed(e)))
	assert.False(t, dd.Observe(ctx, failed(e)))
	assert.Empty(t, d.sent())
}

func TestStepAlertsOnceForMissingHomeworks(t *testing.T) {
	f := fetchBodies(`{"status":"ok"}`)
	d := &recordingDeliverer{}
	c := NewController(PolicyCollection, f, d, logx.Nop())
	r := NewRunner(c, NewDeduplicator(d, logx.Nop()), Every(DefaultInterval), nil, logx.Nop())

	r.Step(context.Background())
	r.Step(context.Background())

	sent := d.sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], MalfunctionPrefix))
	assert.Contains(t, sent[0], "homeworks")
}

func TestStepAlertsOnceWhenOnlyCurrentDateChanges(t *testing.T) {
	f := fetchBodies(
		`{"current_date":1700000000}`,
		`{"current_date":1700000600}`,
		`{"current_date":1700001200}`,
	)
	d := &recordingDeliverer{}
	c := NewController(PolicyCollection, f, d, logx.Nop())
	r := NewRunner(c, NewDeduplicator(d, logx.Nop()), Every(DefaultInterval), nil, logx.Nop())

	for i := 0; i < 3; i++ {
		o := r.Step(context.Background())
		require.Equal(t, KindValidationFailure, o.Kind)
	}
	assert.Equal(t, []string{MalfunctionPrefix + `key "homeworks" not found`}, d.sent())
}

func TestStepStatusCodeSequence(t *testing.T) {
	start := time.Unix(1700000000, 0)
	f := &scriptedFetcher{results: []fetchResult{
		{err: &homework.StatusCodeError{Code: 500}},
		{err: &homework.StatusCodeError{Code: 500}},
		{err: &homework.StatusCodeError{Code: 503}},
		{body: `{"homeworks": []}`},
		{err: &homework.StatusCodeError{Code: 500}},
	}}
	d := &recordingDeliverer{}
	c := NewController(PolicyCollection, f, d, logx.Nop(), WithCursor(start), WithClock(stepClock(start)))
	r := NewRunner(c, NewDeduplicator(d, logx.Nop()), Every(DefaultInterval), nil, logx.Nop())

	var outcomes []Outcome
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, r.Step(context.Background()))
	}

	for _, i := range []int{0, 1, 2, 4} {
		assert.Equal(t, KindTransportFailure, outcomes[i].Kind, "cycle %d", i)
	}
	assert.Equal(t, KindQuiet, outcomes[3].Kind)

	// failed cycles keep the cursor; the successful one moves it to its start
	assert.Equal(t, []time.Time{start, start, start, start, outcomes[3].Started}, f.froms)
	assert.Equal(t, outcomes[3].Started, c.Cursor())

	assert.Equal(t, []string{
		MalfunctionPrefix + "endpoint unavailable: http status 500",
		MalfunctionPrefix + "endpoint unavailable: http status 503",
		MalfunctionPrefix + "endpoint unavailable: http status 500",
	}, d.sent())
}
