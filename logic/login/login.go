// Package login authenticates clients on the global Login actor and binds their sessions to roles.
package login

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/kvdb"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/session"
	"github.com/xiaonanln/gwactor/engine/state"
	"github.com/xiaonanln/gwactor/logic/role"
)

const (
	// CompName is the registered name of the login component
	CompName = "login"
	// AccountColl is the storage collection of accounts
	AccountColl = "account"

	accountKeyPrefix = "account:"
)

// AccountState is the persisted account, keyed by account id
type AccountState struct {
	state.CacheState `bson:",inline"`
	UserName         string `bson:"UserName" msgpack:"UserName"`
	Platform         string `bson:"Platform" msgpack:"Platform"`
	SdkType          int32  `bson:"SdkType" msgpack:"SdkType"`
	Device           string `bson:"Device" msgpack:"Device"`
	RoleId           int64  `bson:"RoleId" msgpack:"RoleId"`
	LastLoginTime    int64  `bson:"LastLoginTime" msgpack:"LastLoginTime"`
}

// Comp is the login component of the global Login actor
type Comp struct {
	actor.Agent

	serverID int
	kv       *kvdb.KVDB
	sessions *session.Manager
}

// Register registers the login component
func Register(serverID int, kv *kvdb.KVDB, sessions *session.Manager) {
	actor.RegisterComp(CompName, idgen.Login, func(a *actor.Actor) actor.Component {
		return &Comp{serverID: serverID, kv: kv, sessions: sessions}
	})
}

// AccountKey returns the kvdb key mapping the user name to its account id
func AccountKey(userName string) string {
	return accountKeyPrefix + userName
}

// accountID returns the account id of the user, allocating one on first login
func (c *Comp) accountID(ctx context.Context, userName string) (idgen.ActorID, error) {
	key := AccountKey(userName)
	val, err := c.kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if val == "" {
		newID, err := idgen.NewShardedID(idgen.Account, c.serverID)
		if err != nil {
			return 0, err
		}
		// another server may register the same user concurrently
		if val, err = c.kv.GetOrPut(ctx, key, strconv.FormatInt(int64(newID), 10)); err != nil {
			return 0, err
		}
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad account id of %s: %q", userName, val)
	}
	return idgen.ActorID(id), nil
}

// loadAccount loads the account, creating it with a new role if it does not exist
func (c *Comp) loadAccount(ctx context.Context, accountID idgen.ActorID, req *proto.ReqLogin) (*AccountState, bool, error) {
	store := c.Actor().Store()
	acc := &AccountState{}
	found, err := store.Load(ctx, AccountColl, int64(accountID), acc)
	if err != nil {
		return nil, false, err
	}
	if !found {
		roleID, err := idgen.NewShardedID(idgen.Role, c.serverID)
		if err != nil {
			return nil, false, err
		}
		acc.Id = int64(accountID)
		acc.CreateId = int64(accountID)
		acc.UserName = req.UserName
		acc.Platform = req.Platform
		acc.SdkType = req.SdkType
		acc.RoleId = int64(roleID)
	}
	acc.AfterLoad(acc, !found)

	acc.Device = req.Device
	acc.LastLoginTime = time.Now().Unix()
	acc.BeforeSave()
	if err := store.Save(ctx, AccountColl, acc.Id, acc); err != nil {
		return nil, false, err
	}
	acc.AfterSave()
	return acc, !found, nil
}

// HandleLogin handles ReqLogin on the Login actor
func (c *Comp) HandleLogin(ctx context.Context, req *dispatcher.Request) error {
	msg := req.Msg.(*proto.ReqLogin)
	if msg.UserName == "" {
		return proto.AccountCannotBeNull
	}

	accountID, err := c.accountID(ctx, msg.UserName)
	if err != nil {
		gwlog.Errorf("%s: login %s: %v", c.Actor(), msg.UserName, err)
		return proto.InternalError
	}
	acc, isNew, err := c.loadAccount(ctx, accountID, msg)
	if err != nil {
		gwlog.Errorf("%s: login %s: %v", c.Actor(), msg.UserName, err)
		return proto.InternalError
	}

	roleID := idgen.ActorID(acc.RoleId)
	sign := msg.Sign
	if sign == "" {
		sign = msg.Device
	}
	c.sessions.Add(&session.Session{
		ActorID:   roleID,
		Channel:   req.Channel,
		Sign:      sign,
		LoginTime: time.Now(),
	})

	info, err := c.loginRole(ctx, accountID, roleID, isNew)
	if err != nil {
		gwlog.Errorf("%s: login role %d of %s: %v", c.Actor(), roleID, msg.UserName, err)
		c.sessions.Remove(req.Channel.ID())
		return proto.InternalError
	}
	info.AccountId = int64(accountID)
	return req.Reply(&proto.RespLogin{Code: proto.Success, UserInfo: info})
}

func (c *Comp) loginRole(ctx context.Context, accountID, roleID idgen.ActorID, isNew bool) (proto.UserInfo, error) {
	for retried := false; ; retried = true {
		rc, err := actor.ComponentOf[*role.Comp](ctx, c.Actor().Manager(), roleID, role.CompName)
		if err != nil {
			return proto.UserInfo{}, err
		}
		info, err := rc.Login(ctx, accountID, isNew)
		// the role was recycled between the lookup and the call
		if retried || errors.Cause(err) != actor.ErrActorRemoved {
			return info, err
		}
		gwlog.Infof("%s: role %d was removed during login, retrying", c.Actor(), roleID)
	}
}

// Routes returns the message routes of login
func Routes() []dispatcher.Route {
	return []dispatcher.Route{{
		MsgID:      proto.MT_REQ_LOGIN,
		Target:     dispatcher.GlobalActor,
		EntityType: idgen.Login,
		Comp:       CompName,
		Handle: func(ctx context.Context, req *dispatcher.Request) error {
			return req.Comp.(*Comp).HandleLogin(ctx, req)
		},
	}}
}
