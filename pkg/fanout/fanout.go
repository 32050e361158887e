// Package fanout runs one independent task per named target and
// reports each outcome as soon as it is known.
package fanout

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome of the task for one target.
type Result[T any] struct {
	Target string
	Value  T
	Err    error
}

// Run starts fn for every target and returns a channel on which the
// results arrive in the order the tasks finish. The channel is closed
// once every target has a result. A failing (or panicking) task does
// not affect the others.
//
// If limit is positive, no more than limit tasks run at once. Targets
// that have not started by the time ctx is done get ctx's error as
// their result.
func Run[T any](ctx context.Context, targets []string, limit int, fn func(ctx context.Context, target string) (T, error)) <-chan Result[T] {
	results := make(chan Result[T], len(targets))
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}

	go func() {
		defer close(results)
		workers := make(chan struct{}, limit)
		awaitWorkers := &sync.WaitGroup{}
		for _, target := range targets {
			select {
			case <-ctx.Done():
				results <- Result[T]{Target: target, Err: ctx.Err()}
				continue
			case workers <- struct{}{}:
			}
			awaitWorkers.Add(1)
			go func(target string) {
				defer func() { awaitWorkers.Done(); <-workers }()
				results <- call(ctx, target, fn)
			}(target)
		}
		awaitWorkers.Wait()
	}()
	return results
}

func call[T any](ctx context.Context, target string, fn func(context.Context, string) (T, error)) (res Result[T]) {
	res.Target = target
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task for %s panicked: %v", target, r)
		}
	}()
	res.Value, res.Err = fn(ctx, target)
	return res
}

// Collect drains results, returning them keyed by target.
func Collect[T any](results <-chan Result[T]) map[string]Result[T] {
	all := map[string]Result[T]{}
	for r := range results {
		all[r.Target] = r
	}
	return all
}
