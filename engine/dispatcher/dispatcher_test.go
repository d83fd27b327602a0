package dispatcher

import (
	"context"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/session"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
)

const testServerID = 1001

type fakeChannel struct {
	sync.Mutex
	id     int64
	closed bool
	frames []proto.Message
}

func (fc *fakeChannel) ID() int64 { return fc.id }

func (fc *fakeChannel) WriteFrame(msgType int32, payload []byte) error {
	msg, err := proto.Decode(msgType, payload)
	if err != nil {
		return err
	}
	fc.Lock()
	fc.frames = append(fc.frames, msg)
	fc.Unlock()
	return nil
}

func (fc *fakeChannel) Close() error          { fc.closed = true; return nil }
func (fc *fakeChannel) IsClosed() bool        { return fc.closed }
func (fc *fakeChannel) SetSessionID(id int64) {}
func (fc *fakeChannel) RemoveSessionID()      {}

func (fc *fakeChannel) last() proto.Message {
	fc.Lock()
	defer fc.Unlock()
	if len(fc.frames) == 0 {
		return nil
	}
	return fc.frames[len(fc.frames)-1]
}

type bagComp struct {
	actor.Agent
	items []proto.ItemInfo
}

type worldComp struct {
	actor.Agent
	level int32
}

func init() {
	actor.RegisterComp("dtest.bag", idgen.Role, func(a *actor.Actor) actor.Component {
		return &bagComp{}
	})
	actor.RegisterComp("dtest.world", idgen.Server, func(a *actor.Actor) actor.Component {
		return &worldComp{level: 5}
	})
}

func testRoutes() []Route {
	return []Route{
		{
			MsgID:  proto.MT_REQ_BAG_INFO,
			Target: SessionActor,
			Comp:   "dtest.bag",
			Handle: func(ctx context.Context, req *Request) error {
				if actor.CurrentActorID(ctx) != req.ActorID() {
					return errors.New("not on the actor's queue")
				}
				bag := req.Comp.(*bagComp)
				return req.Reply(&proto.RespBagInfo{Items: bag.items})
			},
		},
		{
			MsgID:  proto.MT_REQ_ADD_ITEM,
			Target: SessionActor,
			Comp:   "dtest.bag",
			Handle: func(ctx context.Context, req *Request) error {
				add := req.Msg.(*proto.ReqAddItem)
				if add.Count < 0 {
					return errors.Wrap(proto.ItemNotEnough, "remove items")
				}
				bag := req.Comp.(*bagComp)
				bag.items = append(bag.items, proto.ItemInfo{ItemId: add.ItemId, Count: add.Count})
				return req.Reply(&proto.RespBagInfo{Items: bag.items})
			},
		},
		{
			MsgID:      proto.MT_REQ_WORLD_LEVEL,
			Target:     GlobalActor,
			EntityType: idgen.Server,
			Comp:       "dtest.world",
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(&proto.RespWorldLevel{Level: req.Comp.(*worldComp).level})
			},
		},
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *session.Manager) {
	sessions := session.NewManager()
	d := New(testServerID, actor.NewManager(storagememory.Open()), sessions)
	table, err := NewTable(testRoutes())
	if err != nil {
		t.Fatal(err)
	}
	d.SetTable(table)
	return d, sessions
}

func dispatch(t *testing.T, d *Dispatcher, ch *fakeChannel, msg proto.Message) error {
	payload, err := proto.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	return d.Dispatch(context.Background(), ch, msg.MsgID(), payload)
}

func TestHeartbeat(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}
	req := &proto.ReqHeartbeat{TimeTick: 1}
	req.SetUniID(3)
	assert.Equal(t, nil, dispatch(t, d, ch, req))
	resp := ch.last().(*proto.RespHeartbeat)
	assert.Equal(t, int32(3), resp.GetUniID())
	assert.T(t, resp.TimeTick > 0)
}

func TestUnknownMessage(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}

	err := d.Dispatch(context.Background(), ch, 9999, nil)
	assert.T(t, errors.Cause(err) == proto.ErrUnknownMessageType)

	err = dispatch(t, d, ch, &proto.ReqLogin{UserName: "nobody"})
	assert.T(t, errors.Cause(err) == proto.ErrUnknownMessageType)
	assert.Equal(t, nil, ch.last())
	assert.T(t, !ch.IsClosed())
}

func TestSessionRouteNeedsLogin(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}
	req := &proto.ReqBagInfo{}
	req.SetUniID(11)
	assert.Equal(t, nil, dispatch(t, d, ch, req))

	resp := ch.last().(*proto.RespErrorCode)
	assert.Equal(t, proto.NotLoggedIn, resp.ErrCode)
	assert.Equal(t, int32(11), resp.GetUniID())
}

func TestSessionRoute(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}
	roleID, err := idgen.NewShardedID(idgen.Role, testServerID)
	assert.Equal(t, nil, err)
	sessions.Add(&session.Session{ActorID: roleID, Channel: ch})

	add := &proto.ReqAddItem{ItemId: 10001, Count: 2}
	add.SetUniID(5)
	assert.Equal(t, nil, dispatch(t, d, ch, add))
	resp := ch.last().(*proto.RespBagInfo)
	assert.Equal(t, int32(5), resp.GetUniID())
	assert.Equal(t, 1, len(resp.Items))

	req := &proto.ReqBagInfo{}
	req.SetUniID(6)
	assert.Equal(t, nil, dispatch(t, d, ch, req))
	resp = ch.last().(*proto.RespBagInfo)
	assert.Equal(t, int32(6), resp.GetUniID())
	assert.Equal(t, int32(10001), resp.Items[0].ItemId)
}

func TestStateCodeError(t *testing.T) {
	d, sessions := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}
	roleID, err := idgen.NewShardedID(idgen.Role, testServerID)
	assert.Equal(t, nil, err)
	sessions.Add(&session.Session{ActorID: roleID, Channel: ch})

	add := &proto.ReqAddItem{ItemId: 10001, Count: -1}
	add.SetUniID(8)
	assert.Equal(t, nil, dispatch(t, d, ch, add))
	resp := ch.last().(*proto.RespErrorCode)
	assert.Equal(t, proto.ItemNotEnough, resp.ErrCode)
	assert.Equal(t, int32(8), resp.GetUniID())
	assert.T(t, !ch.IsClosed())
}

func TestGlobalRoute(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ch := &fakeChannel{id: 1}
	req := &proto.ReqWorldLevel{}
	req.SetUniID(9)
	assert.Equal(t, nil, dispatch(t, d, ch, req))
	resp := ch.last().(*proto.RespWorldLevel)
	assert.Equal(t, int32(5), resp.Level)
	assert.Equal(t, int32(9), resp.GetUniID())
}

func TestNewTableErrors(t *testing.T) {
	routes := testRoutes()
	_, err := NewTable(append(routes, routes[0]))
	assert.T(t, err != nil)

	_, err = NewTable([]Route{{MsgID: proto.MT_REQ_WORLD_LEVEL, Target: GlobalActor, EntityType: idgen.Role, Comp: "x", Handle: routes[0].Handle}})
	assert.T(t, errors.Cause(err) == idgen.ErrInvalidEntityType)

	_, err = NewTable([]Route{{MsgID: proto.MT_REQ_BAG_INFO, Comp: "x"}})
	assert.T(t, err != nil)
}
