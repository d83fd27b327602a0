package actor

import (
	"context"

	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
)

// EventID identifies an event delivered to the components of an actor
type EventID int

const (
	// EventSessionRemoved is raised when the actor's session is removed (disconnect or kick)
	EventSessionRemoved EventID = iota + 1
	// EventCrossDay is raised at the start of a new day; Data is the open server day
	EventCrossDay
)

// Event is delivered to every active component implementing EventHandler
type Event struct {
	ID   EventID
	Data interface{}
}

// EventHandler is implemented by components interested in events
type EventHandler interface {
	OnEvent(ctx context.Context, ev Event) error
}

// handleEvent delivers ev to the active components. Must run on the actor's queue.
func (a *Actor) handleEvent(ctx context.Context, ev Event) error {
	var firstErr error
	for _, comp := range a.ActiveComps() {
		handler, ok := comp.(EventHandler)
		if !ok {
			continue
		}
		if err := handler.OnEvent(ctx, ev); err != nil {
			gwlog.Errorf("%s: %T handle event %d failed: %v", a, comp, ev.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *Actor) eventWork(ev Event) Work {
	return func(ctx context.Context) (interface{}, error) {
		return nil, a.handleEvent(ctx, ev)
	}
}

// Dispatch tells the event to the actor if it exists. It returns false if the actor does not exist.
func (m *Manager) Dispatch(id idgen.ActorID, ev Event) bool {
	a := m.Get(id)
	if a == nil {
		return false
	}
	a.Tell(context.Background(), a.eventWork(ev))
	return true
}

// SendEvent delivers the event to the actor through its queue and waits until all components handled it
func (a *Actor) SendEvent(ctx context.Context, ev Event) error {
	_, err := a.Call(ctx, a.eventWork(ev))
	return err
}
