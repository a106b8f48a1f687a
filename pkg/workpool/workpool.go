// Package workpool runs independent tasks in sequential fixed-width batches.
// A batch must finish before the next starts, so at most width tasks are in
// flight. Task failures never escape the pool; each task yields an Outcome.
package workpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultWidth is the batch width used when none is configured.
const DefaultWidth = 5

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
	// Ran is false when the task never started because ctx ended first.
	Ran bool
}

// Run executes task for indexes 0..n-1 and returns outcomes in index order.
// When ctx ends, tasks that have not started are reported with Ran=false and
// ctx's error; finished tasks keep their results.
func Run[T any](ctx context.Context, width, n int, task func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	if width <= 0 {
		width = DefaultWidth
	}
	out := make([]Outcome[T], n)
	for start := 0; start < n; start += width {
		end := min(start+width, n)
		if err := ctx.Err(); err != nil {
			for i := start; i < n; i++ {
				out[i] = Outcome[T]{Err: err}
			}
			return out
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = runOne(ctx, i, task)
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

func runOne[T any](ctx context.Context, i int, task func(ctx context.Context, i int) (T, error)) (o Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			o = Outcome[T]{Err: fmt.Errorf("task %d panicked: %v", i, r), Ran: true}
		}
	}()
	v, err := task(ctx, i)
	return Outcome[T]{Value: v, Err: err, Ran: true}
}
