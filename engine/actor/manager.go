package actor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/storage"
)

// Manager is the registry of actors
type Manager struct {
	lock   sync.RWMutex
	actors map[idgen.ActorID]*Actor

	store          storage.Store
	callTimeout    time.Duration
	recycleIdle    time.Duration
	saveBatchSize  int
	saveBatchDelay time.Duration
	hasSession     func(id idgen.ActorID) bool
	now            func() time.Time
}

// NewManager creates an actor manager persisting component states in store
func NewManager(store storage.Store) *Manager {
	return &Manager{
		actors:         map[idgen.ActorID]*Actor{},
		store:          store,
		callTimeout:    consts.DEFAULT_CALL_TIMEOUT,
		recycleIdle:    consts.RECYCLE_IDLE_TIME,
		saveBatchSize:  consts.ONCE_SAVE_COUNT,
		saveBatchDelay: consts.SAVE_BATCH_DELAY,
		now:            time.Now,
	}
}

// SetCallTimeout sets the queueing timeout of Call and ordered operations
func (m *Manager) SetCallTimeout(d time.Duration) {
	m.callTimeout = d
}

// SetRecycleIdle sets how long an actor must stay idle before CheckIdle may recycle it
func (m *Manager) SetRecycleIdle(d time.Duration) {
	m.recycleIdle = d
}

// SetSaveBatch sets the batch size and the pause between batches of TimerSave
func (m *Manager) SetSaveBatch(size int, delay time.Duration) {
	m.saveBatchSize = size
	m.saveBatchDelay = delay
}

// SetSessionChecker sets the function telling if an actor has a live session
func (m *Manager) SetSessionChecker(hasSession func(id idgen.ActorID) bool) {
	m.hasSession = hasSession
}

// SetClock replaces time.Now for idle time computation
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Store returns the state store
func (m *Manager) Store() storage.Store {
	return m.store
}

// GetOrCreate returns the actor of id, creating it if it does not exist.
// Concurrent calls for the same id return the same actor.
func (m *Manager) GetOrCreate(id idgen.ActorID) (*Actor, error) {
	m.lock.RLock()
	a := m.actors[id]
	m.lock.RUnlock()
	if a != nil {
		a.touch()
		return a, nil
	}

	entityType, err := idgen.DecodeEntityType(id)
	if err != nil {
		return nil, err
	}

	m.lock.Lock()
	a = m.actors[id]
	created := a == nil
	if created {
		a = newActor(id, entityType, m)
		m.actors[id] = a
	}
	m.lock.Unlock()

	if created {
		if consts.DEBUG_ACTORS {
			gwlog.Debugf("%s created", a)
		}
		if entityType.IsGlobal() {
			a.Tell(context.Background(), func(ctx context.Context) (interface{}, error) {
				return nil, a.activateAll(ctx)
			})
		}
	} else {
		a.touch()
	}
	return a, nil
}

// Get returns the actor of id, or nil
func (m *Manager) Get(id idgen.ActorID) *Actor {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.actors[id]
}

// Has returns if the actor of id exists
func (m *Manager) Has(id idgen.ActorID) bool {
	return m.Get(id) != nil
}

// Count returns the number of actors
func (m *Manager) Count() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.actors)
}

func (m *Manager) snapshot() []*Actor {
	m.lock.RLock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.lock.RUnlock()
	return actors
}

// ForEach calls fn for every actor until fn returns false
func (m *Manager) ForEach(fn func(a *Actor) bool) {
	for _, a := range m.snapshot() {
		if !fn(a) {
			break
		}
	}
}

func (m *Manager) forget(a *Actor) {
	m.lock.Lock()
	if m.actors[a.id] == a {
		delete(m.actors, a.id)
	}
	m.lock.Unlock()
}

// Remove drains the actor: queued work still runs, new work fails with ErrActorRemoved,
// then components are deactivated (saving states) and the actor leaves the registry
func (m *Manager) Remove(ctx context.Context, id idgen.ActorID) error {
	a := m.Get(id)
	if a == nil {
		return nil
	}
	_, err := a.close().Wait(ctx)
	return err
}

// RemoveAll drains and removes all actors
func (m *Manager) RemoveAll(ctx context.Context) error {
	actors := m.snapshot()
	futures := make([]*Future, 0, len(actors))
	for _, a := range actors {
		futures = append(futures, a.close())
	}
	err := WaitAll(ctx, futures)
	gwlog.Infof("actor manager: %d actors removed, %d left", len(actors), m.Count())
	return err
}

func (m *Manager) enqueueAll(actors []*Actor, work func(a *Actor) Work, timeout time.Duration) []*Future {
	futures := make([]*Future, 0, len(actors))
	for _, a := range actors {
		futures = append(futures, a.Enqueue(context.Background(), work(a), timeout))
	}
	return futures
}

func saveWork(a *Actor) Work {
	return func(ctx context.Context) (interface{}, error) {
		return nil, a.saveStates(ctx)
	}
}

// waitIgnoringRemoved waits for futures, ignoring actors removed meanwhile (their states were saved when deactivated)
func waitIgnoringRemoved(ctx context.Context, futures []*Future) (failed int, err error) {
	for _, f := range futures {
		if _, ferr := f.Wait(ctx); ferr != nil && errors.Cause(ferr) != ErrActorRemoved {
			failed++
			if err == nil {
				err = ferr
			}
		}
	}
	return
}

// SaveAll saves the modified states of all actors
func (m *Manager) SaveAll(ctx context.Context) error {
	actors := m.snapshot()
	failed, err := waitIgnoringRemoved(ctx, m.enqueueAll(actors, saveWork, m.callTimeout))
	if failed > 0 {
		gwlog.Errorf("save all: %d of %d actors failed: %v", failed, len(actors), err)
	} else {
		gwlog.Infof("save all: %d actors saved", len(actors))
	}
	return err
}

// TimerSave saves the modified states of all actors in batches, pausing between batches
func (m *Manager) TimerSave(ctx context.Context) error {
	actors := m.snapshot()
	batchSize := m.saveBatchSize
	if batchSize <= 0 {
		batchSize = len(actors)
	}

	var firstErr error
	for begin := 0; begin < len(actors); begin += batchSize {
		end := begin + batchSize
		if end > len(actors) {
			end = len(actors)
		}
		failed, err := waitIgnoringRemoved(ctx, m.enqueueAll(actors[begin:end], saveWork, m.callTimeout))
		if err != nil {
			gwlog.Errorf("timer save: %d actors failed: %v", failed, err)
			if firstErr == nil {
				firstErr = err
			}
		}

		if end < len(actors) && m.saveBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.saveBatchDelay):
			}
		}
	}
	return firstErr
}

// CheckIdle recycles the actors that are recyclable, idle for long enough and have all states saved.
// It returns the number of recycled actors.
func (m *Manager) CheckIdle(ctx context.Context) (int, error) {
	var candidates []*Actor
	for _, a := range m.snapshot() {
		if a.IdleTime() >= m.recycleIdle && a.Recyclable() {
			candidates = append(candidates, a)
		}
	}

	checks := m.enqueueAll(candidates, func(a *Actor) Work {
		return func(ctx context.Context) (interface{}, error) {
			if a.IdleTime() >= m.recycleIdle && a.Recyclable() && a.readyToDeactivate() {
				return a.close(), nil
			}
			return nil, nil
		}
	}, m.callTimeout)

	var closing []*Future
	for _, f := range checks {
		val, err := f.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			continue
		}
		if val != nil {
			closing = append(closing, val.(*Future))
		}
	}
	err := WaitAll(ctx, closing)
	if len(closing) > 0 {
		gwlog.Infof("check idle: %d actors recycled", len(closing))
	}
	return len(closing), err
}

// CrossDay raises EventCrossDay on all actors: the driver actor first, then the other global actors,
// then sharded actors except players, each group waited for at most its budget; players are told last without waiting.
func (m *Manager) CrossDay(ctx context.Context, openServerDay int, driverID idgen.ActorID) error {
	ev := Event{ID: EventCrossDay, Data: openServerDay}
	gwlog.Infof("cross day: open server day %d", openServerDay)

	var driverErr error
	if driver := m.Get(driverID); driver != nil {
		if driverErr = driver.SendEvent(ctx, ev); driverErr != nil {
			gwlog.Errorf("cross day: driver %s failed: %v", driver, driverErr)
		}
	}

	var globals, sharded, players []*Actor
	for _, a := range m.snapshot() {
		switch {
		case a.id == driverID:
		case a.entityType.IsGlobal():
			globals = append(globals, a)
		case a.entityType == idgen.Role:
			players = append(players, a)
		default:
			sharded = append(sharded, a)
		}
	}

	m.crossDayGroup(ctx, "global", globals, ev, consts.CROSS_DAY_GLOBAL_WAIT)
	m.crossDayGroup(ctx, "sharded", sharded, ev, consts.CROSS_DAY_SHARDED_WAIT)
	for _, a := range players {
		a.Tell(context.Background(), a.eventWork(ev))
	}
	return driverErr
}

func (m *Manager) crossDayGroup(ctx context.Context, group string, actors []*Actor, ev Event, budget time.Duration) {
	if len(actors) == 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	futures := m.enqueueAll(actors, func(a *Actor) Work { return a.eventWork(ev) }, 0)
	if err := WaitAll(wctx, futures); err != nil {
		if wctx.Err() != nil {
			gwlog.Warnf("cross day: %d %s actors not finished in %s", len(actors), group, budget)
		} else {
			gwlog.Errorf("cross day: %s actors: %v", group, err)
		}
	}
}

// AllFinish waits until every actor has executed the work queued before the call
func (m *Manager) AllFinish(ctx context.Context) error {
	futures := m.enqueueAll(m.snapshot(), func(a *Actor) Work {
		return func(ctx context.Context) (interface{}, error) { return nil, nil }
	}, 0)
	_, err := waitIgnoringRemoved(ctx, futures)
	return err
}

// ClearAgents replaces the components of all actors with ones made by the currently registered factories.
// Components implementing Inheritor keep their in-memory data, and StateAgent states are carried over.
func (m *Manager) ClearAgents(ctx context.Context) error {
	futures := m.enqueueAll(m.snapshot(), func(a *Actor) Work {
		return func(ctx context.Context) (interface{}, error) {
			return nil, a.reloadComps(ctx)
		}
	}, 0)
	_, err := waitIgnoringRemoved(ctx, futures)
	return err
}
