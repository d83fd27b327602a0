package actor

import (
	"context"
	"sync"
	"time"

	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwactor/engine/gwutils"
)

// TimerFunc is called on the owning actor's queue when a timer fires
type TimerFunc func(ctx context.Context)

// goTimer is not goroutine-safe: every use of it goes through timerLock
var timerLock sync.Mutex

// TickTimers fires the timers that are due
func TickTimers() {
	timerLock.Lock()
	timer.Tick()
	timerLock.Unlock()
}

// RunTimerTicks ticks timers every interval until ctx is done
func RunTimerTicks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gwutils.RunPanicless(TickTimers)
		}
	}
}

func (a *Actor) timerWork(fn TimerFunc) Work {
	return func(ctx context.Context) (interface{}, error) {
		fn(ctx)
		return nil, nil
	}
}

// AddCallback calls fn once on the actor's queue after d
func (a *Actor) AddCallback(d time.Duration, fn TimerFunc) *timer.Timer {
	var t *timer.Timer
	timerLock.Lock()
	defer timerLock.Unlock()
	t = timer.AddCallback(d, func() {
		a.untrackTimer(t)
		a.Tell(context.Background(), a.timerWork(fn))
	})
	if !a.trackTimer(t) {
		t.Cancel()
	}
	return t
}

// AddTimer calls fn on the actor's queue every d until cancelled
func (a *Actor) AddTimer(d time.Duration, fn TimerFunc) *timer.Timer {
	timerLock.Lock()
	defer timerLock.Unlock()
	t := timer.AddTimer(d, func() {
		a.Tell(context.Background(), a.timerWork(fn))
	})
	if !a.trackTimer(t) {
		t.Cancel()
	}
	return t
}

// CancelTimer cancels a timer created by AddCallback or AddTimer, nil is ignored
func (a *Actor) CancelTimer(t *timer.Timer) {
	if t == nil {
		return
	}
	a.untrackTimer(t)
	timerLock.Lock()
	t.Cancel()
	timerLock.Unlock()
}

// HasTimers returns if the actor has pending timers
func (a *Actor) HasTimers() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.timers) > 0
}

// trackTimer is called with timerLock held; lock order is timerLock, then a.lock
func (a *Actor) trackTimer(t *timer.Timer) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.closed {
		return false
	}
	a.timers[t] = struct{}{}
	return true
}

func (a *Actor) untrackTimer(t *timer.Timer) {
	a.lock.Lock()
	delete(a.timers, t)
	a.lock.Unlock()
}

func (a *Actor) cancelAllTimers() {
	a.lock.Lock()
	timers := a.timers
	a.timers = map[*timer.Timer]struct{}{}
	a.lock.Unlock()

	timerLock.Lock()
	for t := range timers {
		t.Cancel()
	}
	timerLock.Unlock()
}
