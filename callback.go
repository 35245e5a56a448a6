/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package peoplestore

import "context"

// Done receives the outcome of an operation, error first.
// result is the zero value when err is not nil.
type Done[T any] func(err error, result T)

// Callback runs op and passes its outcome to done.
func Callback[T any](op func() (T, error), done Done[T]) {
	res, err := op()
	if err != nil {
		var zero T
		done(err, zero)
		return
	}
	done(nil, res)
}

// Async runs op on its own goroutine and calls done exactly once with its outcome.
// The returned channel is closed after done returns.
func Async[T any](ctx context.Context, op func(ctx context.Context) (T, error), done Done[T]) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		Callback(func() (T, error) { return op(ctx) }, done)
	}()
	return finished
}
