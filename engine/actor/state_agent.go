package actor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/state"
)

// Saver is implemented by components owning persisted state
type Saver interface {
	// SaveState persists the state if it was modified
	SaveState(ctx context.Context) error
	// ReadyToDeactivate returns if all state is saved
	ReadyToDeactivate() bool
}

// StatePtr constrains PT to be *T implementing state.State
type StatePtr[T any] interface {
	*T
	state.State
}

// StateAgent is embedded by components backed by a persisted state keyed by the actor id.
// The state is stored in the collection named by Coll, or the component name if empty.
type StateAgent[T any, PT StatePtr[T]] struct {
	Agent
	State PT
	Coll  string

	loaded bool
}

func (sa *StateAgent[T, PT]) collection() string {
	if sa.Coll != "" {
		return sa.Coll
	}
	return sa.name
}

// Activate loads the state unless it was inherited
func (sa *StateAgent[T, PT]) Activate(ctx context.Context) error {
	if sa.loaded {
		return nil
	}
	return sa.LoadState(ctx)
}

func (sa *StateAgent[T, PT]) stateAgent() *StateAgent[T, PT] {
	return sa
}

// Inherit takes over the loaded state of the replaced component if it holds the same state type
func (sa *StateAgent[T, PT]) Inherit(old Component) error {
	prev, ok := old.(interface{ stateAgent() *StateAgent[T, PT] })
	if !ok {
		return nil
	}
	if p := prev.stateAgent(); p.loaded {
		sa.State = p.State
		sa.loaded = true
	}
	return nil
}

// Deactivate saves the state
func (sa *StateAgent[T, PT]) Deactivate(ctx context.Context) error {
	return sa.SaveState(ctx)
}

// LoadState loads the state from the store, or creates a new one if it does not exist
func (sa *StateAgent[T, PT]) LoadState(ctx context.Context) error {
	s := PT(new(T))
	id := int64(sa.ActorID())
	found := false
	if store := sa.actor.Store(); store != nil {
		var err error
		if found, err = store.Load(ctx, sa.collection(), id, s); err != nil {
			return errors.WithMessagef(err, "%s: load %s", sa.actor, sa.collection())
		}
	}

	cs := s.GetCacheState()
	if !found {
		cs.Id = id
		cs.CreateId = id
	}
	cs.AfterLoad(s, !found)
	sa.State = s
	sa.loaded = true
	if consts.DEBUG_SAVE_LOAD {
		gwlog.Debugf("%s: %s loaded, new=%v", sa.actor, sa.collection(), !found)
	}
	return nil
}

// SaveState saves the state if it was modified since the last load or save
func (sa *StateAgent[T, PT]) SaveState(ctx context.Context) error {
	if !sa.loaded {
		return nil
	}
	cs := sa.State.GetCacheState()
	if !cs.IsModified() {
		return nil
	}
	store := sa.actor.Store()
	if store == nil {
		return nil
	}

	cs.BeforeSave()
	if err := store.Save(ctx, sa.collection(), cs.Id, sa.State); err != nil {
		return errors.WithMessagef(err, "%s: save %s", sa.actor, sa.collection())
	}
	cs.AfterSave()
	if consts.DEBUG_SAVE_LOAD {
		gwlog.Debugf("%s: %s saved, update count %d", sa.actor, sa.collection(), cs.UpdateCount)
	}
	return nil
}

// ReadyToDeactivate returns if the state has no unsaved modification
func (sa *StateAgent[T, PT]) ReadyToDeactivate() bool {
	return !sa.loaded || !sa.State.GetCacheState().IsModified()
}

func (a *Actor) saveStates(ctx context.Context) error {
	var firstErr error
	for _, comp := range a.ActiveComps() {
		if saver, ok := comp.(Saver); ok {
			if err := saver.SaveState(ctx); err != nil {
				gwlog.Errorf("%v", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

func (a *Actor) readyToDeactivate() bool {
	for _, comp := range a.ActiveComps() {
		if saver, ok := comp.(Saver); ok && !saver.ReadyToDeactivate() {
			return false
		}
	}
	return true
}

// SaveStates saves all modified states of the actor through its queue
func (a *Actor) SaveStates(ctx context.Context) error {
	_, err := a.Call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, a.saveStates(ctx)
	})
	return err
}
