package concurrent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ForEachWithLimit runs fn for each item with at most limit calls in flight.
// Every item is attempted unless ctx is cancelled; all errors are joined.
func ForEachWithLimit[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	_, err := MapWithLimit(ctx, items, limit, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}

// MapWithLimit applies fn to each item with at most limit calls in flight.
// Order of results matches order of items.
func MapWithLimit[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if limit <= 0 {
		limit = 1
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Task is the handle of a function started with Go.
type Task[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Go starts fn on its own goroutine. The context passed to fn is detached
// from ctx cancellation so that a caller giving up on the task does not
// abort an in-flight remote call; values are preserved.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	taskCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(t.done)
		t.result, t.err = fn(taskCtx)
	}()

	return t
}

// Done is closed once the task function has returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done, whichever is first.
// When ctx wins, ctx.Err() is returned and the task keeps running.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
