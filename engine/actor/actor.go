// Package actor implements the actor runtime: one ordered execution queue per
// entity id, reentrant cross-actor calls, lazily created components and
// their persisted states.
package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/gwutils"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/storage"
)

// Work is a unit of work executed on an actor's queue
type Work func(ctx context.Context) (interface{}, error)

const (
	itemPending int32 = iota
	itemRunning
	itemAbandoned
)

type workItem struct {
	ctx     context.Context
	work    Work
	chainID int64
	state   int32
	timer   *time.Timer
	future  *Future
	forget  bool
}

// begin moves the item from pending to running, failing if the timeout abandoned it
func (item *workItem) begin() bool {
	if !atomic.CompareAndSwapInt32(&item.state, itemPending, itemRunning) {
		return false
	}
	if item.timer != nil {
		item.timer.Stop()
	}
	return true
}

func (item *workItem) expire() {
	if atomic.CompareAndSwapInt32(&item.state, itemPending, itemAbandoned) {
		item.future.complete(nil, ErrTimeout)
	}
}

// Actor owns one ordered execution queue and the components of one entity
type Actor struct {
	id         idgen.ActorID
	entityType idgen.EntityType
	manager    *Manager

	lock         sync.Mutex
	queue        []*workItem
	draining     bool
	closed       bool
	closeFuture  *Future
	runningChain int64
	lastActive   int64

	autoRecycle bool
	vetoes      map[string]struct{}
	timers      map[*timer.Timer]struct{}

	// accessed on the queue only
	comps     map[string]Component
	compOrder []string
}

func newActor(id idgen.ActorID, entityType idgen.EntityType, manager *Manager) *Actor {
	return &Actor{
		id:          id,
		entityType:  entityType,
		manager:     manager,
		autoRecycle: !entityType.IsGlobal(),
		vetoes:      map[string]struct{}{},
		timers:      map[*timer.Timer]struct{}{},
		comps:       map[string]Component{},
		lastActive:  manager.now().UnixNano(),
	}
}

func (a *Actor) String() string {
	return fmt.Sprintf("Actor<%s|%d>", a.entityType, a.id)
}

// ID returns the actor id
func (a *Actor) ID() idgen.ActorID {
	return a.id
}

// EntityType returns the entity type encoded in the actor id
func (a *Actor) EntityType() idgen.EntityType {
	return a.entityType
}

// Manager returns the manager owning this actor
func (a *Actor) Manager() *Manager {
	return a.manager
}

// Store returns the state store of the manager
func (a *Actor) Store() storage.Store {
	return a.manager.store
}

func (a *Actor) touch() {
	atomic.StoreInt64(&a.lastActive, a.manager.now().UnixNano())
}

// IdleTime returns how long the actor was not looked up by GetOrCreate
func (a *Actor) IdleTime() time.Duration {
	return a.manager.now().Sub(time.Unix(0, atomic.LoadInt64(&a.lastActive)))
}

// Enqueue submits work to the actor's queue and returns its deferred result.
//
// If ctx is executing on this actor with the chain that currently holds the queue,
// work runs inline before Enqueue returns. A positive timeout bounds the time
// the work may stay queued; running work is never interrupted.
//
// Work running on an actor must wait for the futures it creates on other actors
// before returning, otherwise a callback on the same chain could run concurrently with it.
func (a *Actor) Enqueue(ctx context.Context, work Work, timeout time.Duration) *Future {
	return a.enqueue(ctx, work, timeout, false)
}

func (a *Actor) enqueue(ctx context.Context, work Work, timeout time.Duration, forget bool) *Future {
	chainID := ChainID(ctx)
	if !forget && chainID != 0 && chainID == atomic.LoadInt64(&a.runningChain) {
		val, err := a.run(withExec(ctx, a.id, chainID), work)
		return completedFuture(val, err)
	}
	if chainID == 0 || forget {
		chainID = NewChainID()
	}

	item := &workItem{
		ctx:     withExec(context.Background(), a.id, chainID),
		work:    work,
		chainID: chainID,
		future:  newFuture(),
		forget:  forget,
	}
	if timeout > 0 {
		item.timer = time.AfterFunc(timeout, item.expire)
	}

	a.lock.Lock()
	if a.closed {
		a.lock.Unlock()
		if item.timer != nil {
			item.timer.Stop()
		}
		return completedFuture(nil, ErrActorRemoved)
	}
	a.push(item)
	a.lock.Unlock()
	return item.future
}

// push appends an item and starts the drain routine if the queue was idle. Called with lock held.
func (a *Actor) push(item *workItem) {
	a.queue = append(a.queue, item)
	if !a.draining {
		a.draining = true
		go a.drain()
	}
}

func (a *Actor) drain() {
	for {
		a.lock.Lock()
		if len(a.queue) == 0 {
			a.draining = false
			a.lock.Unlock()
			return
		}
		item := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.lock.Unlock()

		if !item.begin() {
			if consts.DEBUG_ACTORS {
				gwlog.Debugf("%s: abandoned work of chain %d skipped", a, item.chainID)
			}
			continue
		}

		atomic.StoreInt64(&a.runningChain, item.chainID)
		val, err := a.run(item.ctx, item.work)
		atomic.StoreInt64(&a.runningChain, 0)

		if err != nil && item.forget {
			gwlog.Errorf("%s: fire-and-forget work failed: %+v", a, err)
		}
		item.future.complete(val, err)
	}
}

func (a *Actor) run(ctx context.Context, work Work) (val interface{}, err error) {
	err = gwutils.CatchPanic(func() (werr error) {
		val, werr = work(ctx)
		return
	})
	if err != nil && errors.Cause(err) == ErrPanic {
		gwlog.Errorf("%s: work panicked: %v", a, err)
	}
	return
}

// Call enqueues work with the manager's call timeout and waits for its result
func (a *Actor) Call(ctx context.Context, work Work) (interface{}, error) {
	return a.Enqueue(ctx, work, a.manager.callTimeout).Wait(ctx)
}

// Tell enqueues work on a fresh chain without waiting. Failures are logged.
func (a *Actor) Tell(ctx context.Context, work Work) {
	f := a.enqueue(ctx, work, 0, true)
	select {
	case <-f.Done():
		if _, err := f.Result(); errors.Cause(err) == ErrActorRemoved {
			gwlog.Warnf("%s: tell dropped: %v", a, err)
		}
	default:
	}
}

// Bypass runs read-only work directly in the caller's goroutine, without ordering
func (a *Actor) Bypass(ctx context.Context, work Work) (interface{}, error) {
	return a.run(ctx, work)
}

// IsClosed returns if the actor refuses new work
func (a *Actor) IsClosed() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.closed
}

// QueueLen returns the number of items waiting in the queue
func (a *Actor) QueueLen() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.queue)
}

// SetAutoRecycle sets whether component name allows the actor to be recycled when idle
func (a *Actor) SetAutoRecycle(name string, enabled bool) {
	a.lock.Lock()
	if enabled {
		delete(a.vetoes, name)
	} else {
		a.vetoes[name] = struct{}{}
	}
	a.lock.Unlock()
}

// Recyclable returns if the actor can be destroyed: its type allows recycling, no component vetoes,
// it has no session, no timers and no queued work
func (a *Actor) Recyclable() bool {
	if a.manager.hasSession != nil && a.manager.hasSession(a.id) {
		return false
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.autoRecycle && !a.closed && len(a.vetoes) == 0 && len(a.timers) == 0 && len(a.queue) == 0
}

// close refuses further external work and queues the final item, which
// cancels timers, deactivates the components and drops the actor from the manager
func (a *Actor) close() *Future {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closeFuture != nil {
		return a.closeFuture
	}
	chainID := NewChainID()
	item := &workItem{
		ctx:     withExec(context.Background(), a.id, chainID),
		work:    a.finalize,
		chainID: chainID,
		future:  newFuture(),
	}
	a.closed = true
	a.closeFuture = item.future
	a.push(item)
	return item.future
}

func (a *Actor) finalize(ctx context.Context) (interface{}, error) {
	a.cancelAllTimers()
	err := a.deactivateComps(ctx)
	a.manager.forget(a)
	if consts.DEBUG_ACTORS {
		gwlog.Debugf("%s removed", a)
	}
	return nil, err
}
