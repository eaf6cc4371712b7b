package cycle

import (
	"context"
	"fmt"
	"sync"
)

// outcome is the result of one item of a bounded batch.
type outcome[T any] struct {
	value T
	ok    bool
	err   error
}

// runBounded calls fn for every item with at most workers concurrent calls and
// blocks until all calls return. Outcomes are indexed by input position, not
// completion order. A failing or panicking call only affects its own outcome.
func runBounded[In, Out any](ctx context.Context, workers int, items []In, fn func(ctx context.Context, item In) (Out, bool, error)) []outcome[Out] {
	results := make([]outcome[Out], len(items))
	if len(items) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item In) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			defer func() {
				if r := recover(); r != nil {
					results[idx] = outcome[Out]{err: fmt.Errorf("panic: %v", r)}
				}
			}()

			value, ok, err := fn(ctx, item)
			results[idx] = outcome[Out]{value: value, ok: ok && err == nil, err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}
