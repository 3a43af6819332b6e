package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSliding(t *testing.T) {
	w := Sliding(now, 1, 5)

	assert.Equal(t, now.Add(-65*time.Minute), w.Start)
	assert.Equal(t, now.Add(time.Minute), w.End)
	assert.True(t, w.Contains(now.Add(30*time.Second)))
	assert.False(t, w.Contains(now.Add(-66*time.Minute)))
}

func TestLookbackAndAround(t *testing.T) {
	lb := Lookback(now, time.Hour)
	assert.Equal(t, now.Add(-time.Hour), lb.Start)
	assert.Equal(t, now.Add(time.Minute), lb.End)

	a := Around(now, 5*time.Minute)
	assert.Equal(t, 10*time.Minute, a.Duration())
	assert.True(t, a.Contains(now))
}

func TestExpand_WidensToTwoHoursAfterEmptyBase(t *testing.T) {
	base := Window{Start: now.Add(-time.Hour), End: now}
	var queried []Window

	res := Expand(context.Background(), base, Hours([]int{2, 6, 12}), func(_ context.Context, w Window) ([]string, error) {
		queried = append(queried, w)
		if len(queried) == 2 {
			return []string{"interval"}, nil
		}
		return nil, nil
	})

	require.True(t, res.Found())
	require.Len(t, queried, 2)
	assert.Equal(t, base, queried[0])
	assert.Equal(t, Window{Start: base.Start.Add(-2 * time.Hour), End: base.End.Add(2 * time.Hour)}, queried[1])
	assert.Equal(t, queried[1], res.Window)
	assert.Equal(t, 2*time.Hour, res.Attempts[1].Delta)
}

func TestExpand_ExhaustsSequence(t *testing.T) {
	base := Window{Start: now.Add(-time.Hour), End: now}
	calls := 0

	res := Expand(context.Background(), base, nil, func(_ context.Context, w Window) ([]int, error) {
		calls++
		return nil, nil
	})

	assert.False(t, res.Found())
	assert.Equal(t, 4, calls)
	assert.Len(t, res.Attempts, 4)
	assert.Equal(t, 12*time.Hour, res.Attempts[3].Delta)
}

func TestExpand_ErrorCountsAsEmpty(t *testing.T) {
	base := Window{Start: now.Add(-time.Hour), End: now}
	calls := 0

	res := Expand(context.Background(), base, []time.Duration{time.Hour}, func(_ context.Context, w Window) ([]int, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream 503")
		}
		return []int{1, 2}, nil
	})

	require.True(t, res.Found())
	assert.Len(t, res.Records, 2)
	assert.Error(t, res.Attempts[0].Err)
}

func TestExpand_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Expand(ctx, Window{Start: now, End: now}, nil, func(_ context.Context, w Window) ([]int, error) {
		t.Fatal("query must not run")
		return nil, nil
	})
	assert.Empty(t, res.Attempts)
}
