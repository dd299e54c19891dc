// Package async provides a bounded-concurrency scheduler for running
// independent tasks with a hard cap on simultaneously in-flight work.
package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Result holds the settled outcome for one input item: either a value or
// the error that produced it, never both.
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs fn over every item with at most limit invocations in flight at
// once. A limit below 1 is raised to 1. min(limit, len(items)) workers
// each repeatedly claim the next unclaimed index from a shared cursor
// until the input is exhausted.
//
// The returned slice has exactly len(items) entries, positionally aligned
// with the input. One item's failure never stops other items from running
// or being recorded; a panicking fn is captured as that item's error.
// Completion order is not specified.
func Map[T any, R any](
	ctx context.Context,
	items []T,
	limit int,
	fn func(ctx context.Context, item T, index int) (R, error),
) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	var (
		cursor int64 = -1
		wg     sync.WaitGroup
	)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				index := int(atomic.AddInt64(&cursor, 1))
				if index >= len(items) {
					return
				}
				results[index] = run(ctx, items[index], index, fn)
			}
		}()
	}

	wg.Wait()
	return results
}

// run executes fn for one item, converting a panic into a recorded error
// so a misbehaving task cannot take down its sibling workers.
func run[T any, R any](
	ctx context.Context,
	item T,
	index int,
	fn func(ctx context.Context, item T, index int) (R, error),
) (result Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("task %d panicked: %v", index, r)
		}
	}()
	result.Value, result.Err = fn(ctx, item, index)
	return result
}
