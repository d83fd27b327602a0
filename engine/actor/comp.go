package actor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
)

// Component is a typed slice of behaviour (and optionally state) attached to one actor.
// Activate and Deactivate always run on the actor's queue.
type Component interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
}

// Inheritor is implemented by components that take over in-memory data from the component they replace
// when business logic is reloaded. Inherit runs on the actor's queue before Activate.
type Inheritor interface {
	Inherit(old Component) error
}

// Factory creates a component for an actor. The returned component is bound to the actor
// before Activate when it embeds Agent.
type Factory func(a *Actor) Component

type compInfo struct {
	name       string
	entityType idgen.EntityType
	factory    Factory
}

var (
	registryLock sync.RWMutex
	registry     = map[string]*compInfo{}
)

// RegisterComp registers a component factory for an entity type. Registering a name again replaces the factory,
// which is how reloaded business logic takes effect.
func RegisterComp(name string, entityType idgen.EntityType, factory Factory) {
	if name == "" || factory == nil {
		gwlog.Panicf("RegisterComp: invalid component %q", name)
	}
	registryLock.Lock()
	if old, ok := registry[name]; ok && old.entityType != entityType {
		gwlog.Warnf("RegisterComp: component %s moved from %s to %s", name, old.entityType, entityType)
	}
	registry[name] = &compInfo{name, entityType, factory}
	registryLock.Unlock()
}

func getCompInfo(name string) *compInfo {
	registryLock.RLock()
	defer registryLock.RUnlock()
	return registry[name]
}

// CompsOf returns the names of components registered for the entity type, sorted
func CompsOf(entityType idgen.EntityType) []string {
	registryLock.RLock()
	var names []string
	for name, info := range registry {
		if info.entityType == entityType {
			names = append(names, name)
		}
	}
	registryLock.RUnlock()
	sort.Strings(names)
	return names
}

// GetComponent returns the component of the actor, creating and activating it on first use.
// It always runs through the actor's queue.
func (a *Actor) GetComponent(ctx context.Context, name string) (Component, error) {
	val, err := a.Call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.getOrCreateComp(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return val.(Component), nil
}

// GetComp returns the component of the actor with its concrete type
func GetComp[T Component](ctx context.Context, a *Actor, name string) (T, error) {
	var ret T
	comp, err := a.GetComponent(ctx, name)
	if err != nil {
		return ret, err
	}
	ret, ok := comp.(T)
	if !ok {
		return ret, errors.Errorf("%s: component %s is %T", a, name, comp)
	}
	return ret, nil
}

// ComponentOf finds or creates the actor and returns its component. If the actor is being removed,
// it waits for the removal to finish and tries once more on a new actor.
func ComponentOf[T Component](ctx context.Context, m *Manager, id idgen.ActorID, name string) (T, error) {
	var ret T
	for retried := false; ; retried = true {
		a, err := m.GetOrCreate(id)
		if err != nil {
			return ret, err
		}
		ret, err = GetComp[T](ctx, a, name)
		if retried || errors.Cause(err) != ErrActorRemoved {
			return ret, err
		}
		if err := m.Remove(ctx, id); err != nil {
			return ret, err
		}
	}
}

func (a *Actor) getOrCreateComp(ctx context.Context, name string) (Component, error) {
	if comp, ok := a.comps[name]; ok {
		return comp, nil
	}
	return a.createComp(ctx, name, nil)
}

// createComp creates and activates the component. When old is not nil, the new component inherits from it.
func (a *Actor) createComp(ctx context.Context, name string, old Component) (Component, error) {
	info := getCompInfo(name)
	if info == nil {
		return nil, errors.Wrap(ErrUnknownComponent, name)
	}
	if info.entityType != a.entityType {
		return nil, errors.Wrapf(ErrComponentNotAllowed, "%s on %s", name, a)
	}

	comp := info.factory(a)
	if b, ok := comp.(binder); ok {
		b.bind(a, name)
	}
	if old != nil {
		if inh, ok := comp.(Inheritor); ok {
			if err := inh.Inherit(old); err != nil {
				return nil, errors.WithMessagef(err, "%s: %s inherit", a, name)
			}
		}
	}
	if err := comp.Activate(ctx); err != nil {
		return nil, errors.WithMessagef(err, "%s: activate %s", a, name)
	}
	a.comps[name] = comp
	a.compOrder = append(a.compOrder, name)
	return comp, nil
}

// ActiveComps returns the activated components in activation order. Must run on the actor's queue.
func (a *Actor) ActiveComps() []Component {
	comps := make([]Component, 0, len(a.compOrder))
	for _, name := range a.compOrder {
		comps = append(comps, a.comps[name])
	}
	return comps
}

// ActivateAll activates every component registered for the actor's entity type
func ActivateAll(ctx context.Context, a *Actor) error {
	_, err := a.Call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, a.activateAll(ctx)
	})
	return err
}

func (a *Actor) activateAll(ctx context.Context) error {
	var firstErr error
	for _, name := range CompsOf(a.entityType) {
		if _, err := a.getOrCreateComp(ctx, name); err != nil {
			gwlog.Errorf("%s: %v", a, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// deactivateComps deactivates components in reverse activation order and clears them. Must run on the queue.
func (a *Actor) deactivateComps(ctx context.Context) error {
	var firstErr error
	for i := len(a.compOrder) - 1; i >= 0; i-- {
		name := a.compOrder[i]
		if err := a.comps[name].Deactivate(ctx); err != nil {
			gwlog.Errorf("%s: deactivate %s failed: %v", a, name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.comps = map[string]Component{}
	a.compOrder = nil
	return firstErr
}

// reloadComps replaces the active components with ones made by the current factories. The new components
// inherit from the old ones, so in-memory data survives. Global actors also activate missing components.
func (a *Actor) reloadComps(ctx context.Context) error {
	order := a.compOrder
	old := a.comps
	firstErr := a.deactivateComps(ctx)
	for _, name := range order {
		if _, err := a.createComp(ctx, name, old[name]); err != nil {
			gwlog.Errorf("%s: reload %s failed: %v", a, name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if a.entityType.IsGlobal() {
		if err := a.activateAll(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type binder interface {
	bind(a *Actor, name string)
}

// Agent is embedded by components. It binds the component to its actor and gives access to the actor's services.
type Agent struct {
	actor *Actor
	name  string
}

func (ag *Agent) bind(a *Actor, name string) {
	ag.actor = a
	ag.name = name
}

// Actor returns the owning actor
func (ag *Agent) Actor() *Actor {
	return ag.actor
}

// ActorID returns the id of the owning actor
func (ag *Agent) ActorID() idgen.ActorID {
	return ag.actor.id
}

// CompName returns the registered name of the component
func (ag *Agent) CompName() string {
	return ag.name
}

// Activate does nothing by default
func (ag *Agent) Activate(ctx context.Context) error {
	return nil
}

// Deactivate does nothing by default
func (ag *Agent) Deactivate(ctx context.Context) error {
	return nil
}

// SetAutoRecycle sets whether this component allows its actor to be recycled when idle
func (ag *Agent) SetAutoRecycle(enabled bool) {
	ag.actor.SetAutoRecycle(ag.name, enabled)
}

// AddCallback calls fn on the actor's queue once after d
func (ag *Agent) AddCallback(d time.Duration, fn TimerFunc) *timer.Timer {
	return ag.actor.AddCallback(d, fn)
}

// AddTimer calls fn on the actor's queue every d
func (ag *Agent) AddTimer(d time.Duration, fn TimerFunc) *timer.Timer {
	return ag.actor.AddTimer(d, fn)
}

// CancelTimer cancels a timer of the actor
func (ag *Agent) CancelTimer(t *timer.Timer) {
	ag.actor.CancelTimer(t)
}
