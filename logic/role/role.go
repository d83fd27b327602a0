// Package role is the main component of player roles: login, logout and client notification.
package role

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/session"
	"github.com/xiaonanln/gwactor/engine/state"
	"github.com/xiaonanln/gwactor/logic/bag"
	"github.com/xiaonanln/gwactor/logic/server"
)

// CompName is the registered name of the role component
const CompName = "role"

var opLogin = actor.NewOp("Role.Login", actor.Ordered)

// State is the persisted state of a role
type State struct {
	state.CacheState `bson:",inline"`
	AccountId        int64  `bson:"AccountId" msgpack:"AccountId"`
	RoleName         string `bson:"RoleName" msgpack:"RoleName"`
	Level            int32  `bson:"Level" msgpack:"Level"`
	VipLevel         int32  `bson:"VipLevel" msgpack:"VipLevel"`
	LoginTime        int64  `bson:"LoginTime" msgpack:"LoginTime"`
	LogoutTime       int64  `bson:"LogoutTime" msgpack:"LogoutTime"`
	LoginDays        int32  `bson:"LoginDays" msgpack:"LoginDays"`
}

// Comp is the role component
type Comp struct {
	actor.StateAgent[State, *State]

	serverID int
	sessions *session.Manager
}

// Register registers the role component of roles on server serverID
func Register(serverID int, sessions *session.Manager) {
	actor.RegisterComp(CompName, idgen.Role, func(a *actor.Actor) actor.Component {
		return &Comp{serverID: serverID, sessions: sessions}
	})
}

// Login logs in the role of the account. The role is kept in memory until logout.
func (c *Comp) Login(ctx context.Context, accountID idgen.ActorID, isNewRole bool) (proto.UserInfo, error) {
	return actor.Invoke(ctx, opLogin, c.Actor(), func(ctx context.Context) (proto.UserInfo, error) {
		c.SetAutoRecycle(false)
		st := c.State
		if isNewRole || st.Level == 0 {
			st.AccountId = int64(accountID)
			st.Level = 1
			st.VipLevel = 1
			st.RoleName = "role" + strconv.Itoa(1000+rand.Intn(9000))
			if _, err := actor.GetComp[*bag.Comp](ctx, c.Actor(), bag.CompName); err != nil {
				return proto.UserInfo{}, err
			}
		}
		now := time.Now().Unix()
		if !sameDay(st.LoginTime, now) {
			st.LoginDays++
		}
		st.LoginTime = now

		if srv, err := server.Of(ctx, c.Actor().Manager(), c.serverID); err == nil {
			srv.AddOnlineRole(ctx, c.ActorID())
		} else {
			gwlog.Errorf("%s: add online role: %v", c.Actor(), err)
		}
		gwlog.Infof("%s: role %s logged in, new=%v", c.Actor(), st.RoleName, isNewRole)
		return c.userInfo(), nil
	})
}

func (c *Comp) userInfo() proto.UserInfo {
	st := c.State
	return proto.UserInfo{
		AccountId:  st.AccountId,
		RoleId:     int64(c.ActorID()),
		RoleName:   st.RoleName,
		Level:      st.Level,
		VipLevel:   st.VipLevel,
		CreateTime: st.CreateTime,
	}
}

// OnEvent handles logout and cross day
func (c *Comp) OnEvent(ctx context.Context, ev actor.Event) error {
	switch ev.ID {
	case actor.EventSessionRemoved:
		return c.onLogout(ctx)
	case actor.EventCrossDay:
		if c.sessions.Has(c.ActorID()) {
			c.State.LoginDays++
			c.NotifyClient(&proto.RespPrompt{Content: "cross day"})
		}
	}
	return nil
}

func (c *Comp) onLogout(ctx context.Context) error {
	c.State.LogoutTime = time.Now().Unix()
	if srv, err := server.Of(ctx, c.Actor().Manager(), c.serverID); err == nil {
		srv.RemoveOnlineRole(ctx, c.ActorID())
	} else {
		gwlog.Errorf("%s: remove online role: %v", c.Actor(), err)
	}
	// recycled when idle from now on
	c.SetAutoRecycle(true)
	gwlog.Infof("%s: role %s logged out", c.Actor(), c.State.RoleName)
	return nil
}

// NotifyClient pushes msg to the client of the role if it is online
func (c *Comp) NotifyClient(msg proto.Message) {
	ch := c.sessions.GetChannel(c.ActorID())
	if ch == nil || ch.IsClosed() {
		return
	}
	if err := proto.Send(ch, msg); err != nil {
		gwlog.Warnf("%s: notify client: %v", c.Actor(), err)
	}
}

func sameDay(t1, t2 int64) bool {
	y1, m1, d1 := time.Unix(t1, 0).Date()
	y2, m2, d2 := time.Unix(t2, 0).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
