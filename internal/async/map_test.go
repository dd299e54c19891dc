package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReturnsPositionalResults(t *testing.T) {
	t.Parallel()

	items := []int{10, 20, 30, 40, 50}
	results := Map(context.Background(), items, 3,
		func(_ context.Context, item, _ int) (int, error) {
			return item * 2, nil
		})

	require.Len(t, results, len(items))
	for i, item := range items {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, item*2, results[i].Value, "result %d must align with input %d", i, i)
	}
}

func TestMapBoundsInFlightWork(t *testing.T) {
	t.Parallel()

	const limit = 3
	var (
		inFlight int64
		peak     int64
		mu       sync.Mutex
	)

	items := make([]int, 20)
	barrier := make(chan struct{})
	started := make(chan struct{}, len(items))

	go func() {
		// Release the first wave once limit tasks are in flight, then let
		// the rest through freely.
		for i := 0; i < limit; i++ {
			<-started
		}
		close(barrier)
	}()

	results := Map(context.Background(), items, limit,
		func(_ context.Context, _, _ int) (struct{}, error) {
			current := atomic.AddInt64(&inFlight, 1)
			mu.Lock()
			if current > peak {
				peak = current
			}
			mu.Unlock()
			started <- struct{}{}
			<-barrier
			atomic.AddInt64(&inFlight, -1)
			return struct{}{}, nil
		})

	require.Len(t, results, len(items))
	assert.LessOrEqual(t, peak, int64(limit), "no more than limit tasks may run at once")
	assert.Equal(t, int64(limit), peak, "the full budget should be used with enough work")
}

func TestMapOneFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	failAt := 2
	boom := errors.New("boom")
	results := Map(context.Background(), []int{0, 1, 2, 3, 4}, 2,
		func(_ context.Context, item, _ int) (string, error) {
			if item == failAt {
				return "", boom
			}
			return fmt.Sprintf("ok-%d", item), nil
		})

	require.Len(t, results, 5)
	for i, result := range results {
		if i == failAt {
			assert.ErrorIs(t, result.Err, boom)
			continue
		}
		assert.NoError(t, result.Err)
		assert.Equal(t, fmt.Sprintf("ok-%d", i), result.Value)
	}
}

func TestMapRecoversPanics(t *testing.T) {
	t.Parallel()

	results := Map(context.Background(), []int{0, 1}, 2,
		func(_ context.Context, item, _ int) (int, error) {
			if item == 1 {
				panic("bad task")
			}
			return item, nil
		})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "panicked")
}

func TestMapLimitFloorAndEmptyInput(t *testing.T) {
	t.Parallel()

	empty := Map(context.Background(), nil, 4,
		func(_ context.Context, _, _ int) (int, error) { return 0, nil })
	assert.Empty(t, empty)

	// A limit below 1 still processes everything, sequentially.
	results := Map(context.Background(), []int{1, 2, 3}, 0,
		func(_ context.Context, item, _ int) (int, error) { return item, nil })
	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, i+1, result.Value)
	}
}
