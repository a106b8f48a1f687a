package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeepsIndexOrderAndIsolatesFailures(t *testing.T) {
	out := Run(context.Background(), 3, 7, func(_ context.Context, i int) (int, error) {
		if i == 4 {
			return 0, errors.New("oracle down")
		}
		if i == 5 {
			panic("boom")
		}
		return i * i, nil
	})
	require.Len(t, out, 7)
	for i, o := range out {
		assert.True(t, o.Ran)
		switch i {
		case 4:
			assert.EqualError(t, o.Err, "oracle down")
		case 5:
			assert.ErrorContains(t, o.Err, "panicked")
		default:
			assert.NoError(t, o.Err)
			assert.Equal(t, i*i, o.Value)
		}
	}
}

func TestRunBoundsConcurrencyPerBatch(t *testing.T) {
	var inFlight, peak int32
	var mu sync.Mutex
	batchOf := map[int]int{}
	Run(context.Background(), 2, 6, func(_ context.Context, i int) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		batchOf[i] = i / 2
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, peak, int32(2))
	assert.Len(t, batchOf, 6)
}

func TestRunStopsStartingBatchesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Run(ctx, 2, 5, func(_ context.Context, i int) (int, error) {
		if i == 1 {
			cancel()
		}
		return i, nil
	})
	assert.True(t, out[0].Ran)
	assert.True(t, out[1].Ran)
	for _, o := range out[2:] {
		assert.False(t, o.Ran)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestRunDefaultsWidth(t *testing.T) {
	out := Run(context.Background(), 0, 3, func(_ context.Context, i int) (int, error) { return i, nil })
	assert.Len(t, out, 3)
	assert.Empty(t, Run(context.Background(), 5, 0, func(context.Context, int) (int, error) { return 0, nil }))
}
