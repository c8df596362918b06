package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome slot for one item. A failed item records its error
// here; siblings are unaffected.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Options tunes chunked execution. Heartbeat is invoked once per chunk
// boundary with a "chunk k of n" detail string.
type Options struct {
	ChunkSize       int
	InterChunkDelay time.Duration
	Heartbeat       func(ctx context.Context, detail string)
	Logger          *zap.Logger

	// Injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	DefaultChunkSize       = 5
	DefaultInterChunkDelay = 500 * time.Millisecond
)

// Process slices items into fixed-size chunks. Items within a chunk run
// concurrently (join-all); chunks run strictly sequentially with a fixed
// inter-chunk delay to respect external rate limits. Returns one result per
// item, in input order. The only error returned is context cancellation.
func Process[T, R any](ctx context.Context, items []T, opts Options, perItem func(ctx context.Context, item T) (R, error)) ([]Result[R], error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.InterChunkDelay <= 0 {
		opts.InterChunkDelay = DefaultInterChunkDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results, nil
	}

	totalChunks := (len(items) + opts.ChunkSize - 1) / opts.ChunkSize

	for chunk := 0; chunk < totalChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if opts.Heartbeat != nil {
			opts.Heartbeat(ctx, fmt.Sprintf("chunk %d of %d", chunk+1, totalChunks))
		}

		start := chunk * opts.ChunkSize
		end := start + opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}

		opts.Logger.Debug("Processing chunk",
			zap.Int("chunk", chunk+1),
			zap.Int("total_chunks", totalChunks),
			zap.Int("size", end-start),
		)

		var wg sync.WaitGroup
		for idx := start; idx < end; idx++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				// A panicking item must not kill its siblings.
				defer func() {
					if r := recover(); r != nil {
						results[idx].Err = fmt.Errorf("item panicked: %v", r)
					}
				}()
				results[idx].Index = idx
				results[idx].Value, results[idx].Err = perItem(ctx, items[idx])
			}(idx)
		}
		wg.Wait()

		if chunk < totalChunks-1 {
			if err := sleep(ctx, opts.InterChunkDelay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
