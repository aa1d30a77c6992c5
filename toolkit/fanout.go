package toolkit

import (
	"context"
	"sync"
)

// FanOutResult pairs one task's output with its error, at the task's original
// index.
type FanOutResult[R any] struct {
	Value R
	Err   error
}

// FanOut runs the tasks concurrently with at most limit in flight and returns
// their results in input order. Individual failures are captured per slot, not
// returned as a combined error; limit <= 0 means unbounded.
func FanOut[R any](ctx context.Context, limit int, tasks []func(ctx context.Context) (R, error)) []FanOutResult[R] {
	results := make([]FanOutResult[R], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var sem chan struct{}
	if limit > 0 {
		sem = make(chan struct{}, limit)
	}

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func(ctx context.Context) (R, error)) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i].Err = ctx.Err()
					return
				}
			}
			results[i].Value, results[i].Err = task(ctx)
		}(i, task)
	}
	wg.Wait()
	return results
}
