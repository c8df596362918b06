package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessChunksAndHeartbeats(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}

	var heartbeats []string
	var delays int
	opts := Options{
		ChunkSize:       5,
		InterChunkDelay: 500 * time.Millisecond,
		Heartbeat: func(ctx context.Context, detail string) {
			heartbeats = append(heartbeats, detail)
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays++
			assert.Equal(t, 500*time.Millisecond, d)
			return nil
		},
	}

	results, err := Process(context.Background(), items, opts, func(ctx context.Context, item int) (int, error) {
		return item * 2, nil
	})

	require.NoError(t, err)
	require.Len(t, results, 12)
	// 12 items at size 5: chunks of 5, 5, 2.
	assert.Equal(t, []string{"chunk 1 of 3", "chunk 2 of 3", "chunk 3 of 3"}, heartbeats)
	assert.Equal(t, 2, delays)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i*2, r.Value)
	}
}

func TestProcessItemFailureDoesNotAbortSiblings(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	opts := Options{
		ChunkSize: 5,
		Sleep:     func(ctx context.Context, d time.Duration) error { return nil },
	}

	results, err := Process(context.Background(), items, opts, func(ctx context.Context, item int) (string, error) {
		if item == 2 {
			return "", errors.New("boom")
		}
		return fmt.Sprintf("ok-%d", item), nil
	})

	require.NoError(t, err)
	assert.Error(t, results[2].Err)
	for _, i := range []int{0, 1, 3, 4} {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, fmt.Sprintf("ok-%d", i), results[i].Value)
	}
}

func TestProcessChunksAreSequential(t *testing.T) {
	items := make([]int, 9)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	var order []int
	var inFlight, maxInFlight int32

	opts := Options{
		ChunkSize: 3,
		Sleep:     func(ctx context.Context, d time.Duration) error { return nil },
	}

	_, err := Process(context.Background(), items, opts, func(ctx context.Context, item int) (struct{}, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, item)
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})

	require.NoError(t, err)
	// No cross-chunk parallelism: never more than one chunk's worth in flight.
	assert.LessOrEqual(t, maxInFlight, int32(3))
	// Chunk k's items all complete before chunk k+1 starts.
	require.Len(t, order, 9)
	for i, item := range order {
		assert.Equal(t, i/3, item/3, "item %d completed out of chunk order", item)
	}
}

func TestProcessPanicIsolated(t *testing.T) {
	items := []int{0, 1, 2}
	opts := Options{
		ChunkSize: 3,
		Sleep:     func(ctx context.Context, d time.Duration) error { return nil },
	}

	results, err := Process(context.Background(), items, opts, func(ctx context.Context, item int) (int, error) {
		if item == 1 {
			panic("unexpected")
		}
		return item, nil
	})

	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestProcessEmptyInput(t *testing.T) {
	var heartbeats int
	opts := Options{
		Heartbeat: func(ctx context.Context, detail string) { heartbeats++ },
	}

	results, err := Process(context.Background(), nil, opts, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, heartbeats)
}

func TestProcessContextCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 10)

	var processed int32
	opts := Options{
		ChunkSize: 5,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	_, err := Process(ctx, items, opts, func(ctx context.Context, item int) (int, error) {
		atomic.AddInt32(&processed, 1)
		return item, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(5), processed)
}
