package dispatcher

import (
	"context"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/session"
)

// Target tells how the actor handling a message is resolved
type Target int

const (
	// SessionActor is the actor bound to the sending channel; the message is refused if the channel has no session
	SessionActor Target = iota
	// GlobalActor is the server-global actor of the route's entity type
	GlobalActor
)

// Request is passed to handlers, on the queue of the target actor
type Request struct {
	Msg     proto.Message
	Channel session.Channel
	Actor   *actor.Actor
	Comp    actor.Component
}

// ActorID returns the id of the target actor
func (r *Request) ActorID() idgen.ActorID {
	return r.Actor.ID()
}

// Reply sends msg on the request's channel, tagged with the request's correlation id
func (r *Request) Reply(msg proto.Message) error {
	return Reply(r.Channel, msg, r.Msg.GetUniID())
}

// Handler handles one message. Returning a proto.StateCode (possibly wrapped) answers the client with RespErrorCode.
type Handler func(ctx context.Context, req *Request) error

// Route binds a message type to the component handling it
type Route struct {
	MsgID      proto.MsgType
	Target     Target
	EntityType idgen.EntityType // GlobalActor only
	Comp       string
	Handle     Handler
}

// Table maps message types to routes
type Table map[proto.MsgType]*Route

// NewTable builds a table, checking that every route is complete and message types are unique
func NewTable(routes []Route) (Table, error) {
	table := Table{}
	for i := range routes {
		r := &routes[i]
		if r.Handle == nil || r.Comp == "" {
			return nil, errors.Errorf("route of message %d is incomplete", r.MsgID)
		}
		if _, err := proto.NewMessage(r.MsgID); err != nil {
			return nil, errors.Wrapf(err, "route of message %d", r.MsgID)
		}
		if r.Target == GlobalActor && !r.EntityType.IsGlobal() {
			return nil, errors.Wrapf(idgen.ErrInvalidEntityType, "route of message %d: %s is not global", r.MsgID, r.EntityType)
		}
		if _, ok := table[r.MsgID]; ok {
			return nil, errors.Errorf("duplicate route of message %d", r.MsgID)
		}
		table[r.MsgID] = r
	}
	return table, nil
}
