package actor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwactor/engine/idgen"
)

type eventComp struct {
	Agent
	tag string
}

var (
	eventLock sync.Mutex
	eventSeen []string
)

func (c *eventComp) OnEvent(ctx context.Context, ev Event) error {
	eventLock.Lock()
	eventSeen = append(eventSeen, c.tag)
	eventLock.Unlock()
	return nil
}

func resetEvents() {
	eventLock.Lock()
	eventSeen = nil
	eventLock.Unlock()
}

func seenEvents() []string {
	eventLock.Lock()
	defer eventLock.Unlock()
	return append([]string(nil), eventSeen...)
}

var serverActivations int32

type serverComp struct {
	eventComp
}

func (c *serverComp) Activate(ctx context.Context) error {
	atomic.AddInt32(&serverActivations, 1)
	return nil
}

func init() {
	RegisterComp("test.server", idgen.Server, func(a *Actor) Component {
		return &serverComp{eventComp{tag: "server"}}
	})
	RegisterComp("test.chat", idgen.Chat, func(a *Actor) Component {
		return &eventComp{tag: "chat"}
	})
	RegisterComp("test.guildevent", idgen.Guild, func(a *Actor) Component {
		return &eventComp{tag: "guild"}
	})
	RegisterComp("test.roleevent", idgen.Role, func(a *Actor) Component {
		return &eventComp{tag: "role"}
	})
}

func TestGlobalActorActivatesComponents(t *testing.T) {
	m := newTestManager()
	before := atomic.LoadInt32(&serverActivations)
	a := mustGetOrCreate(t, m, mustGlobalID(t, idgen.Server))
	assert.Equal(t, nil, m.AllFinish(context.Background()))
	assert.Equal(t, before+1, atomic.LoadInt32(&serverActivations))

	assert.Equal(t, nil, ActivateAll(context.Background(), a))
	assert.Equal(t, before+1, atomic.LoadInt32(&serverActivations))
	assert.Equal(t, []string{"test.server"}, CompsOf(idgen.Server))
}

func TestDispatchEvent(t *testing.T) {
	resetEvents()
	m := newTestManager()
	id := newRoleID(t)
	assert.T(t, !m.Dispatch(id, Event{ID: EventSessionRemoved}))

	a := mustGetOrCreate(t, m, id)
	_, err := a.GetComponent(context.Background(), "test.roleevent")
	assert.Equal(t, nil, err)
	assert.T(t, m.Dispatch(id, Event{ID: EventSessionRemoved}))
	assert.Equal(t, nil, m.AllFinish(context.Background()))
	assert.Equal(t, []string{"role"}, seenEvents())
}

func TestCrossDayOrder(t *testing.T) {
	resetEvents()
	m := newTestManager()
	driverID := mustGlobalID(t, idgen.Server)
	mustGetOrCreate(t, m, driverID)
	mustGetOrCreate(t, m, mustGlobalID(t, idgen.Chat))

	guildID, err := idgen.NewShardedID(idgen.Guild, testServerID)
	assert.Equal(t, nil, err)
	_, err = ComponentOf[*eventComp](context.Background(), m, guildID, "test.guildevent")
	assert.Equal(t, nil, err)
	_, err = ComponentOf[*eventComp](context.Background(), m, newRoleID(t), "test.roleevent")
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.AllFinish(context.Background()))

	assert.Equal(t, nil, m.CrossDay(context.Background(), 3, driverID))
	assert.Equal(t, nil, m.AllFinish(context.Background()))
	assert.Equal(t, []string{"server", "chat", "guild", "role"}, seenEvents())
}

func TestCheckIdle(t *testing.T) {
	m := newTestManager()
	m.SetRecycleIdle(0)

	idle := mustGetOrCreate(t, m, newRoleID(t))
	vetoed := mustGetOrCreate(t, m, newRoleID(t))
	c, err := GetComp[*plainComp](context.Background(), vetoed, "test.plain")
	assert.Equal(t, nil, err)
	c.SetAutoRecycle(false)
	unsaved := mustGetOrCreate(t, m, newRoleID(t))
	_, err = unsaved.GetComponent(context.Background(), "test.counter")
	assert.Equal(t, nil, err)
	global := mustGetOrCreate(t, m, mustGlobalID(t, idgen.Chat))

	n, err := m.CheckIdle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, n)
	assert.T(t, !m.Has(idle.ID()))
	assert.T(t, m.Has(vetoed.ID()))
	assert.T(t, m.Has(unsaved.ID()))
	assert.T(t, m.Has(global.ID()))

	assert.Equal(t, nil, unsaved.SaveStates(context.Background()))
	n, err = m.CheckIdle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, n)
	assert.T(t, !m.Has(unsaved.ID()))
}

func TestCheckIdleRespectsIdleTime(t *testing.T) {
	m := newTestManager()
	var now int64 = time.Now().UnixNano()
	m.SetClock(func() time.Time { return time.Unix(0, atomic.LoadInt64(&now)) })
	m.SetRecycleIdle(15 * time.Minute)
	a := mustGetOrCreate(t, m, newRoleID(t))

	n, err := m.CheckIdle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, n)

	atomic.AddInt64(&now, int64(16*time.Minute))
	n, err = m.CheckIdle(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, n)
	assert.T(t, !m.Has(a.ID()))
}

func TestTimerSaveInBatches(t *testing.T) {
	m := newTestManager()
	m.SetSaveBatch(2, time.Millisecond)

	var comps []*counterComp
	for i := 0; i < 5; i++ {
		c, err := ComponentOf[*counterComp](context.Background(), m, newRoleID(t), "test.counter")
		assert.Equal(t, nil, err)
		comps = append(comps, c)
	}

	assert.Equal(t, nil, m.TimerSave(context.Background()))
	assert.Equal(t, nil, m.AllFinish(context.Background()))
	for _, c := range comps {
		assert.T(t, c.ReadyToDeactivate())
	}
	n, err := m.Store().Count(context.Background(), "test.counter", nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, n)
}

func TestSaveAll(t *testing.T) {
	m := newTestManager()
	c, err := ComponentOf[*counterComp](context.Background(), m, newRoleID(t), "test.counter")
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.SaveAll(context.Background()))
	assert.T(t, c.ReadyToDeactivate())
}

func TestClearAgents(t *testing.T) {
	m := newTestManager()
	a := mustGetOrCreate(t, m, newRoleID(t))
	c1, err := GetComp[*plainComp](context.Background(), a, "test.plain")
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, m.ClearAgents(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&c1.deactivated))

	c2, err := GetComp[*plainComp](context.Background(), a, "test.plain")
	assert.Equal(t, nil, err)
	assert.T(t, c1 != c2)
}

type inheritComp struct {
	Agent
	hits int
}

func (c *inheritComp) Inherit(old Component) error {
	c.hits = old.(*inheritComp).hits
	return nil
}

func init() {
	RegisterComp("test.inherit", idgen.Role, func(a *Actor) Component {
		return &inheritComp{}
	})
}

func TestClearAgentsKeepsState(t *testing.T) {
	m := newTestManager()
	a := mustGetOrCreate(t, m, newRoleID(t))
	ctx := context.Background()

	counter, err := GetComp[*counterComp](ctx, a, "test.counter")
	assert.Equal(t, nil, err)
	inh, err := GetComp[*inheritComp](ctx, a, "test.inherit")
	assert.Equal(t, nil, err)
	_, err = a.Call(ctx, func(ctx context.Context) (interface{}, error) {
		counter.State.Counter = 7
		inh.hits = 3
		return nil, nil
	})
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, m.ClearAgents(ctx))

	counter2, err := GetComp[*counterComp](ctx, a, "test.counter")
	assert.Equal(t, nil, err)
	inh2, err := GetComp[*inheritComp](ctx, a, "test.inherit")
	assert.Equal(t, nil, err)
	assert.T(t, counter2 != counter)
	assert.T(t, counter2.State == counter.State)
	assert.Equal(t, 7, counter2.State.Counter)
	assert.T(t, inh2 != inh)
	assert.Equal(t, 3, inh2.hits)
}

func TestTimers(t *testing.T) {
	m := newTestManager()
	a := mustGetOrCreate(t, m, newRoleID(t))

	fired := make(chan idgen.ActorID, 1)
	a.AddCallback(5*time.Millisecond, func(ctx context.Context) {
		fired <- CurrentActorID(ctx)
	})
	assert.T(t, a.HasTimers())
	assert.T(t, !a.Recyclable())

	deadline := time.Now().Add(2 * time.Second)
	var got idgen.ActorID
	for got == 0 && time.Now().Before(deadline) {
		TickTimers()
		select {
		case got = <-fired:
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, a.ID(), got)
	assert.T(t, !a.HasTimers())

	var ticks int32
	tm := a.AddTimer(time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&ticks, 1)
	})
	for atomic.LoadInt32(&ticks) < 3 && time.Now().Before(deadline) {
		TickTimers()
		time.Sleep(2 * time.Millisecond)
		assert.Equal(t, nil, m.AllFinish(context.Background()))
	}
	assert.T(t, atomic.LoadInt32(&ticks) >= 3)
	a.CancelTimer(tm)
	assert.T(t, !a.HasTimers())
}

func TestRemoveCancelsTimers(t *testing.T) {
	m := newTestManager()
	id := newRoleID(t)
	a := mustGetOrCreate(t, m, id)
	a.AddTimer(time.Hour, func(ctx context.Context) {})
	assert.T(t, a.HasTimers())
	assert.Equal(t, nil, m.Remove(context.Background(), id))
	assert.T(t, !a.HasTimers())
}

func TestRunTimerTicks(t *testing.T) {
	m := newTestManager()
	a := mustGetOrCreate(t, m, newRoleID(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunTimerTicks(ctx, time.Millisecond)

	fired := make(chan struct{})
	a.AddCallback(time.Millisecond, func(ctx context.Context) { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not fired")
	}
}
