package actor

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// CallKind tells how an operation reaches its actor
type CallKind int

const (
	// Ordered operations run on the actor's queue and the caller waits for the result
	Ordered CallKind = iota
	// ReadOnlyBypass operations do not touch mutable actor state and run directly in the caller
	ReadOnlyBypass
	// FireAndForget operations are queued and ordered, but the caller does not wait and failures are only logged
	FireAndForget
)

func (k CallKind) String() string {
	switch k {
	case Ordered:
		return "Ordered"
	case ReadOnlyBypass:
		return "ReadOnlyBypass"
	case FireAndForget:
		return "FireAndForget"
	}
	return "CallKind(?)"
}

type invoker func(ctx context.Context, a *Actor, timeout time.Duration, work Work) (interface{}, error)

// Op describes an operation exposed by a component. The way it is invoked is chosen once, when the Op is defined.
type Op struct {
	Name    string
	Kind    CallKind
	Timeout time.Duration // 0 uses the manager's call timeout

	invoke invoker
}

// NewOp defines an operation of the given kind
func NewOp(name string, kind CallKind) *Op {
	op := &Op{Name: name, Kind: kind}
	switch kind {
	case Ordered:
		op.invoke = invokeOrdered
	case ReadOnlyBypass:
		op.invoke = invokeBypass
	case FireAndForget:
		op.invoke = invokeForget
	default:
		panic(errors.Errorf("op %s: invalid call kind %d", name, kind))
	}
	return op
}

// WithTimeout sets the queueing timeout of the operation
func (op *Op) WithTimeout(timeout time.Duration) *Op {
	op.Timeout = timeout
	return op
}

func invokeOrdered(ctx context.Context, a *Actor, timeout time.Duration, work Work) (interface{}, error) {
	if timeout <= 0 {
		timeout = a.manager.callTimeout
	}
	return a.Enqueue(ctx, work, timeout).Wait(ctx)
}

func invokeBypass(ctx context.Context, a *Actor, _ time.Duration, work Work) (interface{}, error) {
	return a.Bypass(ctx, work)
}

func invokeForget(ctx context.Context, a *Actor, _ time.Duration, work Work) (interface{}, error) {
	a.Tell(ctx, work)
	return nil, nil
}

// Invoke runs fn on actor a the way op is defined
func Invoke[T any](ctx context.Context, op *Op, a *Actor, fn func(ctx context.Context) (T, error)) (T, error) {
	var ret T
	val, err := op.invoke(ctx, a, op.Timeout, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return ret, errors.WithMessage(err, op.Name)
	}
	if val != nil {
		ret = val.(T)
	}
	return ret, nil
}

// Exec is Invoke for operations without result
func Exec(ctx context.Context, op *Op, a *Actor, fn func(ctx context.Context) error) error {
	_, err := op.invoke(ctx, a, op.Timeout, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		return errors.WithMessage(err, op.Name)
	}
	return nil
}
