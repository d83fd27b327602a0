package gwutils

import (
	"context"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// ErrPanic is the cause of errors converted from recovered panics
var ErrPanic = errors.New("panic")

// RunPanicless calls a function panic-freely
func RunPanicless(f func()) (paniced bool) {
	defer func() {
		err := recover()
		if err != nil {
			gwlog.TraceError("%p panic: %v", f, err)
			paniced = true
		}
	}()

	f()
	return
}

// RepeatUntilPanicless runs the function repeatly until there is no panic or ctx is done
func RepeatUntilPanicless(ctx context.Context, f func()) {
	for RunPanicless(f) {
		if ctx.Err() != nil {
			return
		}
	}
}

// CatchPanic calls f and converts a panic into an error wrapping ErrPanic
func CatchPanic(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			gwlog.Errorf("recovered panic: %v\n%s", r, debug.Stack())
			if perr, ok := r.(error); ok {
				err = errors.Wrapf(ErrPanic, "%v", perr)
			} else {
				err = errors.Wrapf(ErrPanic, "%v", r)
			}
		}
	}()

	return f()
}
