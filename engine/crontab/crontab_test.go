package crontab

import (
	"context"
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

func at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2024, month, day, hour, minute, 2, 0, time.Local)
}

func TestRegister(t *testing.T) {
	c := New()
	count := 0
	_, err := c.Register(-1, -1, -1, -1, -1, func() {
		count++
	})
	assert.Equal(t, nil, err)
	c.Check(at(time.March, 5, 10, 17))
	c.Check(at(time.March, 5, 10, 18))
	assert.Equal(t, 2, count)
}

func TestMatch(t *testing.T) {
	c := New()
	var fired []string
	register := func(name string, minute, hour, day, month, dayofweek int) {
		_, err := c.Register(minute, hour, day, month, dayofweek, func() {
			fired = append(fired, name)
		})
		assert.Equal(t, nil, err)
	}
	register("midnight", 0, 0, -1, -1, -1)
	register("every-15-minutes", -15, -1, -1, -1, -1)
	register("sunday", 30, 12, -1, -1, 0)
	register("first-of-month", 0, 8, 1, -1, -1)

	// 2024-03-03 is a sunday
	for _, tc := range []struct {
		t    time.Time
		want []string
	}{
		{at(time.March, 4, 0, 0), []string{"every-15-minutes", "midnight"}},
		{at(time.March, 4, 0, 7), nil},
		{at(time.March, 3, 12, 30), []string{"every-15-minutes", "sunday"}},
		{at(time.March, 4, 12, 30), []string{"every-15-minutes"}},
		{at(time.April, 1, 8, 0), []string{"every-15-minutes", "first-of-month"}},
	} {
		fired = nil
		c.Check(tc.t)
		assert.Equal(t, len(tc.want), len(fired))
		for _, name := range tc.want {
			found := false
			for _, f := range fired {
				found = found || f == name
			}
			assert.Tf(t, found, "%s should fire at %s", name, tc.t)
		}
	}
}

func TestUnregister(t *testing.T) {
	c := New()
	count1, count2 := 0, 0
	_, _ = c.Register(-1, -1, -1, -1, -1, func() {
		count1++
	})

	var h Handle
	h, _ = c.Register(-1, -1, -1, -1, -1, func() {
		count2++
		c.Unregister(h)
	})
	c.Check(at(time.May, 1, 1, 1))
	c.Check(at(time.May, 1, 1, 2))
	assert.Equal(t, 2, count1)
	assert.Equal(t, 1, count2)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidTime(t *testing.T) {
	c := New()
	for _, args := range [][5]int{
		{60, -1, -1, -1, -1},
		{-1, 24, -1, -1, -1},
		{-1, -1, 0, -1, -1},
		{-1, -1, -1, 13, -1},
		{-1, -1, -1, -1, 8},
	} {
		_, err := c.Register(args[0], args[1], args[2], args[3], args[4], func() {})
		assert.Tf(t, err != nil, "%v should be rejected", args)
	}
	assert.Equal(t, 0, c.Len())
}

func TestPanicInCallback(t *testing.T) {
	c := New()
	ran := false
	_, _ = c.Register(-1, -1, -1, -1, -1, func() { panic("boom") })
	_, _ = c.Register(-1, -1, -1, -1, -1, func() { ran = true })
	c.Check(at(time.June, 1, 0, 0))
	assert.T(t, ran)
}

func TestUntilNextCheck(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 20, 30, 0, time.Local)
	assert.Equal(t, 32*time.Second, untilNextCheck(now))
	now = time.Date(2024, 1, 1, 10, 20, 1, 0, time.Local)
	assert.Equal(t, time.Second, untilNextCheck(now))
}

func TestRunStops(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}
