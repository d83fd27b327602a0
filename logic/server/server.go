// Package server is the per-server global component: online roles and world level.
package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/state"
)

// CompName is the registered name of the server component
const CompName = "server"

// MaxWorldLevel caps the world level raised by cross day
const MaxWorldLevel = 100

const (
	delayTimerDelay       = 3 * time.Second
	scheduleTimerInterval = 10 * time.Second
)

var (
	opAddOnlineRole    = actor.NewOp("Server.AddOnlineRole", actor.FireAndForget)
	opRemoveOnlineRole = actor.NewOp("Server.RemoveOnlineRole", actor.FireAndForget)
	opIsOnline         = actor.NewOp("Server.IsOnline", actor.Ordered)
	opOnlineCount      = actor.NewOp("Server.OnlineCount", actor.Ordered)
	opGetWorldLevel    = actor.NewOp("Server.GetWorldLevel", actor.ReadOnlyBypass)
)

// State is the persisted state of the server
type State struct {
	state.CacheState `bson:",inline"`
	WorldLevel       int32 `bson:"WorldLevel" msgpack:"WorldLevel"`
	OpenServerDay    int   `bson:"OpenServerDay" msgpack:"OpenServerDay"`
}

// Comp is the server component, living on the global Server actor
type Comp struct {
	actor.StateAgent[State, *State]

	online     map[idgen.ActorID]struct{}
	worldLevel int32 // mirrors State.WorldLevel for GetWorldLevel

	delayTimer    *timer.Timer
	scheduleTimer *timer.Timer
}

// Register registers the server component
func Register() {
	actor.RegisterComp(CompName, idgen.Server, func(a *actor.Actor) actor.Component {
		return &Comp{online: map[idgen.ActorID]struct{}{}}
	})
}

// Of returns the server component of the server
func Of(ctx context.Context, m *actor.Manager, serverID int) (*Comp, error) {
	id, err := idgen.NewGlobalID(idgen.Server, serverID)
	if err != nil {
		return nil, err
	}
	return actor.ComponentOf[*Comp](ctx, m, id, CompName)
}

// Activate loads the state and starts the demo timers
func (c *Comp) Activate(ctx context.Context) error {
	if err := c.StateAgent.Activate(ctx); err != nil {
		return err
	}
	if c.State.WorldLevel == 0 {
		c.State.WorldLevel = 1
	}
	atomic.StoreInt32(&c.worldLevel, c.State.WorldLevel)

	c.delayTimer = c.AddCallback(delayTimerDelay, func(ctx context.Context) {
		gwlog.Debugf("%s: delay timer fired once", c.Actor())
	})
	c.scheduleTimer = c.AddTimer(scheduleTimerInterval, func(ctx context.Context) {
		gwlog.Debugf("%s: %d roles online, world level %d", c.Actor(), len(c.online), c.State.WorldLevel)
	})
	return nil
}

// Inherit keeps the online roles and the state across a reload
func (c *Comp) Inherit(old actor.Component) error {
	if prev, ok := old.(*Comp); ok {
		c.online = prev.online
	}
	return c.StateAgent.Inherit(old)
}

// Deactivate stops the timers and saves the state
func (c *Comp) Deactivate(ctx context.Context) error {
	c.CancelTimer(c.delayTimer)
	c.CancelTimer(c.scheduleTimer)
	return c.StateAgent.Deactivate(ctx)
}

// OnEvent raises the world level on cross day
func (c *Comp) OnEvent(ctx context.Context, ev actor.Event) error {
	if ev.ID != actor.EventCrossDay {
		return nil
	}
	day, _ := ev.Data.(int)
	c.State.OpenServerDay = day
	level := int32(day)
	if level > MaxWorldLevel {
		level = MaxWorldLevel
	}
	if level > c.State.WorldLevel {
		c.State.WorldLevel = level
		atomic.StoreInt32(&c.worldLevel, level)
	}
	gwlog.Infof("%s: cross day %d, world level %d", c.Actor(), day, c.State.WorldLevel)
	return nil
}

// AddOnlineRole marks the role online without waiting
func (c *Comp) AddOnlineRole(ctx context.Context, roleID idgen.ActorID) {
	_ = actor.Exec(ctx, opAddOnlineRole, c.Actor(), func(ctx context.Context) error {
		c.online[roleID] = struct{}{}
		return nil
	})
}

// RemoveOnlineRole marks the role offline without waiting
func (c *Comp) RemoveOnlineRole(ctx context.Context, roleID idgen.ActorID) {
	_ = actor.Exec(ctx, opRemoveOnlineRole, c.Actor(), func(ctx context.Context) error {
		delete(c.online, roleID)
		return nil
	})
}

// IsOnline returns if the role is online
func (c *Comp) IsOnline(ctx context.Context, roleID idgen.ActorID) (bool, error) {
	return actor.Invoke(ctx, opIsOnline, c.Actor(), func(ctx context.Context) (bool, error) {
		_, ok := c.online[roleID]
		return ok, nil
	})
}

// OnlineCount returns the number of online roles
func (c *Comp) OnlineCount(ctx context.Context) (int, error) {
	return actor.Invoke(ctx, opOnlineCount, c.Actor(), func(ctx context.Context) (int, error) {
		return len(c.online), nil
	})
}

// GetWorldLevel returns the world level without queueing
func (c *Comp) GetWorldLevel(ctx context.Context) (int32, error) {
	return actor.Invoke(ctx, opGetWorldLevel, c.Actor(), func(ctx context.Context) (int32, error) {
		return atomic.LoadInt32(&c.worldLevel), nil
	})
}

// Routes returns the message routes of the server component
func Routes() []dispatcher.Route {
	return []dispatcher.Route{{
		MsgID:      proto.MT_REQ_WORLD_LEVEL,
		Target:     dispatcher.GlobalActor,
		EntityType: idgen.Server,
		Comp:       CompName,
		Handle: func(ctx context.Context, req *dispatcher.Request) error {
			c := req.Comp.(*Comp)
			return req.Reply(&proto.RespWorldLevel{
				Level:       atomic.LoadInt32(&c.worldLevel),
				OnlineCount: int32(len(c.online)),
			})
		},
	}}
}
