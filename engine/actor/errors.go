package actor

import (
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/gwutils"
)

var (
	// ErrTimeout is returned when queued work did not start before its timeout
	ErrTimeout = errors.New("actor: call timeout")
	// ErrActorRemoved is returned when the target actor is draining or gone
	ErrActorRemoved = errors.New("actor: actor removed")
	// ErrUnknownComponent is returned for a component name that was never registered
	ErrUnknownComponent = errors.New("actor: unknown component")
	// ErrComponentNotAllowed is returned when a component is requested on an actor of another entity type
	ErrComponentNotAllowed = errors.New("actor: component not allowed")
	// ErrPanic is the cause of errors produced by work that panicked
	ErrPanic = gwutils.ErrPanic
)
