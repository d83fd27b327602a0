// Package dispatcher routes decoded client messages to the components of actors.
package dispatcher

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/opmon"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/session"
)

// Dispatcher resolves the target actor of each message and runs its handler on the actor's queue
type Dispatcher struct {
	serverID int
	actors   *actor.Manager
	sessions *session.Manager
	table    atomic.Value // Table
}

// New creates a dispatcher with an empty route table
func New(serverID int, actors *actor.Manager, sessions *session.Manager) *Dispatcher {
	d := &Dispatcher{
		serverID: serverID,
		actors:   actors,
		sessions: sessions,
	}
	d.table.Store(Table{})
	return d
}

// SetTable replaces the route table atomically
func (d *Dispatcher) SetTable(table Table) {
	d.table.Store(table)
}

// Table returns the current route table
func (d *Dispatcher) Table() Table {
	return d.table.Load().(Table)
}

// Dispatch decodes and handles one message from ch. Unknown messages are logged and dropped;
// failures never close the channel.
func (d *Dispatcher) Dispatch(ctx context.Context, ch session.Channel, msgType proto.MsgType, payload []byte) error {
	msg, err := proto.Decode(msgType, payload)
	if err != nil {
		gwlog.Errorf("dispatcher: conn %d: drop message: %v", ch.ID(), err)
		return err
	}
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("dispatcher: conn %d <<< %T %+v", ch.ID(), msg, msg)
	}

	if req, ok := msg.(*proto.ReqHeartbeat); ok {
		return Reply(ch, &proto.RespHeartbeat{TimeTick: time.Now().UnixMilli()}, req.GetUniID())
	}

	route := d.Table()[msgType]
	if route == nil {
		err = errors.Wrapf(proto.ErrUnknownMessageType, "no route of message %d", msgType)
		gwlog.Errorf("dispatcher: conn %d: drop message: %v", ch.ID(), err)
		return err
	}

	op := opmon.StartOperation("dispatch." + strconv.Itoa(int(msgType)))
	defer op.Finish(consts.DISPATCH_WARN_THRESHOLD)

	err = d.handle(ctx, ch, route, msg)
	if err == nil {
		return nil
	}
	if code, ok := errors.Cause(err).(proto.StateCode); ok {
		return ReplyError(ch, code, msg.GetUniID())
	}
	gwlog.Errorf("dispatcher: conn %d: handle message %d failed: %+v", ch.ID(), msgType, err)
	return err
}

func (d *Dispatcher) resolve(ch session.Channel, route *Route) (idgen.ActorID, error) {
	switch route.Target {
	case SessionActor:
		if id, ok := d.sessions.ActorIDOf(ch.ID()); ok {
			return id, nil
		}
		return 0, proto.NotLoggedIn
	case GlobalActor:
		return idgen.NewGlobalID(route.EntityType, d.serverID)
	}
	return 0, errors.Errorf("invalid route target %d", route.Target)
}

func (d *Dispatcher) handle(ctx context.Context, ch session.Channel, route *Route, msg proto.Message) error {
	id, err := d.resolve(ch, route)
	if err != nil {
		return err
	}
	a, err := d.actors.GetOrCreate(id)
	if err != nil {
		return err
	}

	_, err = a.Call(ctx, func(ctx context.Context) (interface{}, error) {
		comp, err := a.GetComponent(ctx, route.Comp)
		if err != nil {
			return nil, err
		}
		return nil, route.Handle(ctx, &Request{
			Msg:     msg,
			Channel: ch,
			Actor:   a,
			Comp:    comp,
		})
	})
	return err
}

// Reply sends msg on ch tagged with the correlation id uniID
func Reply(w proto.FrameWriter, msg proto.Message, uniID int32) error {
	msg.SetUniID(uniID)
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("dispatcher: >>> %T %+v", msg, msg)
	}
	return proto.Send(w, msg)
}

// ReplyError answers a request with RespErrorCode
func ReplyError(w proto.FrameWriter, code proto.StateCode, uniID int32) error {
	return Reply(w, &proto.RespErrorCode{ErrCode: code, Desc: code.Error()}, uniID)
}
