package crontab

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/gwutils"
)

const (
	_CRONTAB_TIME_OFFSET = time.Second * 2
)

// Handle is the type of return value of Register, can be used to cancel the register
type Handle int

type entry struct {
	minute, hour, day, month, dayofweek int
	cb                                  func()
}

// matchField matches a specific value, or every -want when want is negative
func matchField(want int, got int) bool {
	if want >= 0 {
		return want == got
	}
	return got%-want == 0
}

func (e *entry) match(t time.Time) bool {
	if !matchField(e.minute, t.Minute()) || !matchField(e.hour, t.Hour()) ||
		!matchField(e.day, t.Day()) || !matchField(e.month, int(t.Month())) {
		return false
	}

	switch {
	case e.dayofweek < 0:
		return true
	case e.dayofweek == 0 || e.dayofweek == 7:
		return t.Weekday() == time.Sunday
	default:
		return e.dayofweek == int(t.Weekday())
	}
}

// Crontab runs registered callbacks when the wall clock matches their time condition.
// Callbacks run on the goroutine of Run, one minute granularity.
type Crontab struct {
	lock       sync.Mutex
	entries    map[Handle]*entry
	nextHandle Handle
}

// New creates an empty crontab
func New() *Crontab {
	return &Crontab{
		entries:    map[Handle]*entry{},
		nextHandle: 1,
	}
}

// Register a callack which will be executed when time condition is satisfied
//
// param minute: time condition satisfied on the specified minute, or every -minute if minute is negative
// param hour: time condition satisfied on the specified hour, or every -hour when hour is negative
// param day: time condition satisfied on the specified day, or every -day when day is negative
// param month: time condition satisfied on the specified month, or every -month when month is negative
// param dayofweek: time condition satisfied on the specified week day (0 or 7 for sunday), or any day if -1
// param cb: callback function to be executed when time is satisfied
func (c *Crontab) Register(minute, hour, day, month, dayofweek int, cb func()) (Handle, error) {
	if err := validateTime(minute, hour, day, month, dayofweek); err != nil {
		return 0, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	h := c.nextHandle
	c.nextHandle++
	c.entries[h] = &entry{
		minute:    minute,
		hour:      hour,
		day:       day,
		month:     month,
		dayofweek: dayofweek,
		cb:        cb,
	}
	return h, nil
}

func validateTime(minute, hour, day, month, dayofweek int) error {
	switch {
	case minute > 59 || minute < -60:
		return errors.Errorf("invalid minute = %d", minute)
	case hour > 23 || hour < -24:
		return errors.Errorf("invalid hour = %d", hour)
	case day > 31 || day < -31 || day == 0:
		return errors.Errorf("invalid day = %d", day)
	case month > 12 || month < -12 || month == 0:
		return errors.Errorf("invalid month = %d", month)
	case dayofweek > 7 || dayofweek < -1:
		return errors.Errorf("invalid dayofweek = %d", dayofweek)
	}
	return nil
}

// Unregister a registered crontab handle, can be called inside callbacks
func (c *Crontab) Unregister(h Handle) {
	c.lock.Lock()
	delete(c.entries, h)
	c.lock.Unlock()
}

// Len returns the number of registered callbacks
func (c *Crontab) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.entries)
}

// Check runs the callbacks matching t
func (c *Crontab) Check(t time.Time) {
	c.lock.Lock()
	var matched []func()
	for _, e := range c.entries {
		if e.match(t) {
			matched = append(matched, e.cb)
		}
	}
	c.lock.Unlock()

	gwlog.Debugf("crontab: %s matched %d callbacks", t.Format("2006-01-02 15:04"), len(matched))
	for _, cb := range matched {
		gwutils.RunPanicless(cb)
	}
}

// Run checks the callbacks a few seconds after every minute starts until ctx is done
func (c *Crontab) Run(ctx context.Context) {
	for {
		now := time.Now()
		t := time.NewTimer(untilNextCheck(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case fired := <-t.C:
			c.Check(fired)
		}
	}
}

func untilNextCheck(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(_CRONTAB_TIME_OFFSET)
	if !next.After(now) {
		next = next.Add(time.Minute)
	}
	return next.Sub(now)
}
