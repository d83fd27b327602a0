package logic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/hotfix"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/kvdb"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbmemory"
	"github.com/xiaonanln/gwactor/engine/proto"
	engineserver "github.com/xiaonanln/gwactor/engine/server"
	"github.com/xiaonanln/gwactor/engine/session"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
	"github.com/xiaonanln/gwactor/logic/login"
	"github.com/xiaonanln/gwactor/logic/role"
	"github.com/xiaonanln/gwactor/logic/server"
)

const serverID = 1001

var lastChannelID int64

type fakeChannel struct {
	sync.Mutex
	id     int64
	msgs   []proto.Message
	closed bool
}

func newFakeChannel() *fakeChannel {
	lastChannelID++
	return &fakeChannel{id: lastChannelID}
}

func (fc *fakeChannel) ID() int64 { return fc.id }

func (fc *fakeChannel) WriteFrame(msgType int32, payload []byte) error {
	msg, err := proto.Decode(msgType, payload)
	if err != nil {
		return err
	}
	fc.Lock()
	fc.msgs = append(fc.msgs, msg)
	fc.Unlock()
	return nil
}

func (fc *fakeChannel) Close() error {
	fc.Lock()
	fc.closed = true
	fc.Unlock()
	return nil
}

func (fc *fakeChannel) IsClosed() bool {
	fc.Lock()
	defer fc.Unlock()
	return fc.closed
}

func (fc *fakeChannel) SetSessionID(id int64) {}
func (fc *fakeChannel) RemoveSessionID()      {}

func (fc *fakeChannel) last() proto.Message {
	fc.Lock()
	defer fc.Unlock()
	if len(fc.msgs) == 0 {
		return nil
	}
	return fc.msgs[len(fc.msgs)-1]
}

type testGame struct {
	env        *engineserver.Env
	dispatcher *dispatcher.Dispatcher
	hotfix     *hotfix.Manager
}

func newTestGame(t *testing.T) *testGame {
	actors := actor.NewManager(storagememory.Open())
	sessions := session.NewManager()
	actors.SetSessionChecker(sessions.Has)
	sessions.SetOnRemoved(func(id idgen.ActorID) {
		actors.Dispatch(id, actor.Event{ID: actor.EventSessionRemoved})
	})
	env := &engineserver.Env{
		ServerID: serverID,
		Actors:   actors,
		Sessions: sessions,
		KVDB:     kvdb.OpenEngine(kvdbmemory.OpenMemoryKVDB()),
	}
	d := dispatcher.New(serverID, actors, sessions)
	hf := hotfix.NewManager(d, actors)
	assert.Equal(t, nil, hf.Load(context.Background(), func() hotfix.Module { return New(env) }))
	return &testGame{env: env, dispatcher: d, hotfix: hf}
}

func (g *testGame) send(t *testing.T, ch *fakeChannel, msg proto.Message, uniID int32) proto.Message {
	msg.SetUniID(uniID)
	payload, err := proto.Encode(msg)
	assert.Equal(t, nil, err)
	_ = g.dispatcher.Dispatch(context.Background(), ch, msg.MsgID(), payload)
	return ch.last()
}

func (g *testGame) login(t *testing.T, ch *fakeChannel, userName string, sign string) *proto.RespLogin {
	resp := g.send(t, ch, &proto.ReqLogin{UserName: userName, Sign: sign}, 7)
	loginResp, ok := resp.(*proto.RespLogin)
	assert.Tf(t, ok, "unexpected response %#v", resp)
	return loginResp
}

func TestLoginScenario(t *testing.T) {
	g := newTestGame(t)
	ch := newFakeChannel()

	resp := g.login(t, ch, "alice", "device-1")
	assert.Equal(t, int32(7), resp.GetUniID())
	assert.Equal(t, proto.Success, resp.Code)

	accountID := idgen.ActorID(resp.UserInfo.AccountId)
	et, err := idgen.DecodeEntityType(accountID)
	assert.Equal(t, nil, err)
	assert.Equal(t, idgen.Account, et)
	sid, err := idgen.DecodeServerID(accountID)
	assert.Equal(t, nil, err)
	assert.Equal(t, serverID, sid)

	roleID := idgen.ActorID(resp.UserInfo.RoleId)
	assert.Equal(t, idgen.Role, idgen.MustEntityType(roleID))
	assert.Equal(t, int32(1), resp.UserInfo.Level)
	assert.T(t, g.env.Sessions.Has(roleID))

	val, err := g.env.KVDB.Get(context.Background(), login.AccountKey("alice"))
	assert.Equal(t, nil, err)
	assert.T(t, val != "")

	// the same user gets the same account and role
	ch2 := newFakeChannel()
	resp2 := g.login(t, ch2, "alice", "device-1")
	assert.Equal(t, int64(accountID), resp2.UserInfo.AccountId)
	assert.Equal(t, int64(roleID), resp2.UserInfo.RoleId)
	// replaced without prompt, same sign
	assert.T(t, ch.IsClosed())
	assert.Equal(t, 1, g.env.Sessions.Count())
}

func TestLoginEmptyAccount(t *testing.T) {
	g := newTestGame(t)
	ch := newFakeChannel()
	resp := g.send(t, ch, &proto.ReqLogin{}, 9)
	errResp, ok := resp.(*proto.RespErrorCode)
	assert.T(t, ok)
	assert.Equal(t, proto.AccountCannotBeNull, errResp.ErrCode)
	assert.Equal(t, int32(9), errResp.GetUniID())
}

func TestLoginElsewhere(t *testing.T) {
	g := newTestGame(t)
	ch1 := newFakeChannel()
	g.login(t, ch1, "bob", "phone")
	ch2 := newFakeChannel()
	g.login(t, ch2, "bob", "tablet")

	assert.T(t, ch1.IsClosed())
	prompt, ok := ch1.last().(*proto.RespPrompt)
	assert.T(t, ok)
	assert.Equal(t, proto.PromptLoginElsewhere, prompt.Type)
	assert.T(t, !ch2.IsClosed())
}

func TestBagRequests(t *testing.T) {
	g := newTestGame(t)
	ch := newFakeChannel()

	resp := g.send(t, ch, &proto.ReqBagInfo{}, 1)
	errResp, ok := resp.(*proto.RespErrorCode)
	assert.T(t, ok)
	assert.Equal(t, proto.NotLoggedIn, errResp.ErrCode)

	g.login(t, ch, "carol", "")
	resp = g.send(t, ch, &proto.ReqAddItem{ItemId: 1, Count: 10}, 2)
	bag := resp.(*proto.RespBagInfo)
	assert.Equal(t, int32(2), bag.GetUniID())
	assert.Equal(t, 1, len(bag.Items))
	assert.Equal(t, int64(10), bag.Items[0].Count)

	resp = g.send(t, ch, &proto.ReqAddItem{ItemId: 1, Count: -11}, 3)
	errResp = resp.(*proto.RespErrorCode)
	assert.Equal(t, proto.ItemNotEnough, errResp.ErrCode)

	resp = g.send(t, ch, &proto.ReqBagInfo{}, 4)
	bag = resp.(*proto.RespBagInfo)
	assert.Equal(t, int64(10), bag.Items[0].Count)
}

func TestOnlineAndLogout(t *testing.T) {
	g := newTestGame(t)
	ctx := context.Background()
	ch := newFakeChannel()
	resp := g.login(t, ch, "dave", "")
	roleID := idgen.ActorID(resp.UserInfo.RoleId)

	wl := g.send(t, ch, &proto.ReqWorldLevel{}, 5).(*proto.RespWorldLevel)
	assert.Equal(t, int32(1), wl.Level)
	assert.Equal(t, int32(1), wl.OnlineCount)

	srv, err := server.Of(ctx, g.env.Actors, serverID)
	assert.Equal(t, nil, err)
	online, err := srv.IsOnline(ctx, roleID)
	assert.Equal(t, nil, err)
	assert.T(t, online)

	a := g.env.Actors.Get(roleID)
	assert.T(t, a != nil)
	assert.T(t, !a.Recyclable())

	assert.T(t, g.env.Sessions.Remove(ch.ID()))
	// logout runs on the role's queue, then reaches the server
	assert.Equal(t, nil, g.env.Actors.AllFinish(ctx))
	assert.Equal(t, nil, g.env.Actors.AllFinish(ctx))

	online, err = srv.IsOnline(ctx, roleID)
	assert.Equal(t, nil, err)
	assert.T(t, !online)
	rc, err := actor.ComponentOf[*role.Comp](ctx, g.env.Actors, roleID, role.CompName)
	assert.Equal(t, nil, err)
	assert.T(t, rc.State.LogoutTime > 0)
	assert.T(t, a.Recyclable())
}

func TestReload(t *testing.T) {
	g := newTestGame(t)
	ch := newFakeChannel()
	roleID := idgen.ActorID(g.login(t, ch, "erin", "").UserInfo.RoleId)
	before := g.hotfix.ReloadTime()
	time.Sleep(time.Millisecond)

	assert.Equal(t, nil, g.hotfix.Reload(context.Background()))
	assert.T(t, g.hotfix.ReloadTime().After(before))

	// the session and the online roles survive the reload
	resp := g.send(t, ch, &proto.ReqBagInfo{}, 8)
	_, ok := resp.(*proto.RespBagInfo)
	assert.T(t, ok)

	resp = g.send(t, ch, &proto.ReqWorldLevel{}, 9)
	wl, ok := resp.(*proto.RespWorldLevel)
	assert.T(t, ok)
	assert.Equal(t, int32(1), wl.OnlineCount)

	srv, err := server.Of(context.Background(), g.env.Actors, serverID)
	assert.Equal(t, nil, err)
	online, err := srv.IsOnline(context.Background(), roleID)
	assert.Equal(t, nil, err)
	assert.T(t, online)
}
