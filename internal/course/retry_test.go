// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/course-engine/pkg/types"
)

// scriptedGenerator returns the next outcome on each call and repeats the
// last one once the script runs out.
type scriptedGenerator struct {
	outcomes []outcome
	calls    int
}

type outcome struct {
	rec   types.ChapterRecord
	err   error
	panic bool
}

func (g *scriptedGenerator) GenerateChapter(_ context.Context, req ChapterRequest) (types.ChapterRecord, error) {
	o := g.outcomes[min(g.calls, len(g.outcomes)-1)]
	g.calls++
	if o.panic {
		panic("generator exploded")
	}
	return o.rec, o.err
}

func good(title string) types.ChapterRecord {
	return types.ChapterRecord{Title: title, Summary: "S", Explanation: "E", Extension: "X"}
}

// recordingSleep returns a sleep func that records delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func testRetrier(maxRetries int, delays *[]time.Duration) *Retrier {
	return &Retrier{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		sleep:      recordingSleep(delays),
		jitter:     func() time.Duration { return 0 },
	}
}

func TestRetrier_AlwaysFailing(t *testing.T) {
	for _, r := range []int{0, 1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max retries %d", r), func(t *testing.T) {
			var delays []time.Duration
			gen := &scriptedGenerator{outcomes: []outcome{{err: errors.New("transient")}}}

			rec := testRetrier(r, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "X"})

			assert.Equal(t, r+1, gen.calls)
			assert.True(t, rec.IsError())
			assert.Equal(t, "X", rec.Title)
			assert.Equal(t, fmt.Sprintf("Error: Failed to generate chapter content after %d attempts.", r+1), rec.Summary)
			assert.Contains(t, rec.Explanation, "transient")
			assert.NotEmpty(t, rec.Extension)
			assert.Len(t, delays, r)
		})
	}
}

func TestRetrier_RecoversAfterOneFailure(t *testing.T) {
	var delays []time.Duration
	want := good("A")
	gen := &scriptedGenerator{outcomes: []outcome{{err: errors.New("transient")}, {rec: want}}}

	rec := testRetrier(3, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "A"})

	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, want, rec)
	assert.Equal(t, []time.Duration{time.Second}, delays)
}

func TestRetrier_EmptyExplanationIsFailure(t *testing.T) {
	var delays []time.Duration
	blank := types.ChapterRecord{Title: "A", Summary: "S", Explanation: "  \n "}
	gen := &scriptedGenerator{outcomes: []outcome{{rec: blank}, {rec: blank}, {rec: good("A")}}}

	rec := testRetrier(3, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "A"})

	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, good("A"), rec)
}

func TestRetrier_ExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	gen := &scriptedGenerator{outcomes: []outcome{{err: errors.New("x")}}}

	testRetrier(3, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "A"})

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestRetrier_JitterBounded(t *testing.T) {
	r := &Retrier{BaseDelay: time.Second}
	for i := 0; i < 50; i++ {
		d := r.backoff(1)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestRetrier_RecoversPanics(t *testing.T) {
	var delays []time.Duration
	gen := &scriptedGenerator{outcomes: []outcome{{panic: true}, {rec: good("A")}}}

	var rec types.ChapterRecord
	require.NotPanics(t, func() {
		rec = testRetrier(2, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "A"})
	})
	assert.Equal(t, good("A"), rec)
	assert.Equal(t, 2, gen.calls)
}

func TestRetrier_NegativeMaxRetries(t *testing.T) {
	var delays []time.Duration
	gen := &scriptedGenerator{outcomes: []outcome{{err: errors.New("x")}}}

	rec := testRetrier(-4, &delays).Generate(context.Background(), gen, ChapterRequest{Title: "A"})

	assert.Equal(t, 1, gen.calls)
	assert.True(t, rec.IsError())
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{outcomes: []outcome{{err: errors.New("x")}}}
	r := &Retrier{
		MaxRetries: 5,
		BaseDelay:  time.Hour,
		sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	rec := r.Generate(ctx, gen, ChapterRequest{Title: "A"})

	assert.Equal(t, 1, gen.calls)
	assert.True(t, rec.IsError())
	assert.Contains(t, rec.Explanation, context.Canceled.Error())
}

func TestNewRetrier_Defaults(t *testing.T) {
	r := NewRetrier(types.ParallelConfig{MaxRetries: 2}, nil)
	assert.Equal(t, 2, r.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, r.BaseDelay)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
