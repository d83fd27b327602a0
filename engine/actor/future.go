package actor

import (
	"context"
)

// Future is the deferred result of work enqueued to an actor
type Future struct {
	done chan struct{}
	val  interface{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func completedFuture(val interface{}, err error) *Future {
	f := newFuture()
	f.complete(val, err)
	return f
}

// complete must be called exactly once
func (f *Future) complete(val interface{}, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done returns a channel which is closed when the result is ready
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait waits for the result. When ctx is done first, the work is not cancelled but its result is discarded.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the result of a completed future
func (f *Future) Result() (interface{}, error) {
	<-f.done
	return f.val, f.err
}

// WaitAll waits for all futures and returns the first error
func WaitAll(ctx context.Context, futures []*Future) error {
	var firstErr error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
