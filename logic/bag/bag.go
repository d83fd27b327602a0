// Package bag keeps the items of a role.
package bag

import (
	"context"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xiaonanln/gwactor/engine/state"
)

// CompName is the registered name of the bag component
const CompName = "bag"

var (
	opAddItem = actor.NewOp("Bag.AddItem", actor.Ordered)
	opItems   = actor.NewOp("Bag.Items", actor.Ordered)
)

// Item is one stack of items
type Item struct {
	Uid    int64 `bson:"Uid" msgpack:"Uid"`
	ItemId int32 `bson:"ItemId" msgpack:"ItemId"`
	Count  int64 `bson:"Count" msgpack:"Count"`
}

// State is the persisted bag of a role
type State struct {
	state.CacheState `bson:",inline"`
	Items            []Item `bson:"Items" msgpack:"Items"`
}

// Comp is the bag component of roles
type Comp struct {
	actor.StateAgent[State, *State]
}

// Register registers the bag component
func Register() {
	actor.RegisterComp(CompName, idgen.Role, func(a *actor.Actor) actor.Component {
		return &Comp{}
	})
}

func (c *Comp) find(itemID int32) int {
	for i := range c.State.Items {
		if c.State.Items[i].ItemId == itemID {
			return i
		}
	}
	return -1
}

// AddItem adds count items of itemID, or removes them if count is negative.
// Removing more than owned fails with proto.ItemNotEnough.
func (c *Comp) AddItem(ctx context.Context, itemID int32, count int64) error {
	return actor.Exec(ctx, opAddItem, c.Actor(), func(ctx context.Context) error {
		return c.addItem(itemID, count)
	})
}

func (c *Comp) addItem(itemID int32, count int64) error {
	if count == 0 {
		return nil
	}
	i := c.find(itemID)
	if count < 0 {
		if i < 0 || c.State.Items[i].Count < -count {
			return proto.ItemNotEnough
		}
		c.State.Items[i].Count += count
		if c.State.Items[i].Count == 0 {
			c.State.Items = append(c.State.Items[:i], c.State.Items[i+1:]...)
		}
		return nil
	}

	if i >= 0 {
		c.State.Items[i].Count += count
		return nil
	}
	uid, err := idgen.NewUniqueID(idgen.ModuleItem)
	if err != nil {
		return errors.WithMessage(err, "new item uid")
	}
	c.State.Items = append(c.State.Items, Item{Uid: uid, ItemId: itemID, Count: count})
	gwlog.Debugf("%s: new item %d x%d uid %d", c.Actor(), itemID, count, uid)
	return nil
}

// Count returns the number of items of itemID. Must run on the role's queue.
func (c *Comp) Count(itemID int32) int64 {
	if i := c.find(itemID); i >= 0 {
		return c.State.Items[i].Count
	}
	return 0
}

// Items returns a copy of the bag content
func (c *Comp) Items(ctx context.Context) ([]proto.ItemInfo, error) {
	return actor.Invoke(ctx, opItems, c.Actor(), func(ctx context.Context) ([]proto.ItemInfo, error) {
		return c.itemInfos(), nil
	})
}

func (c *Comp) itemInfos() []proto.ItemInfo {
	infos := make([]proto.ItemInfo, 0, len(c.State.Items))
	for _, it := range c.State.Items {
		infos = append(infos, proto.ItemInfo{Uid: it.Uid, ItemId: it.ItemId, Count: it.Count})
	}
	return infos
}

// Routes returns the message routes of the bag
func Routes() []dispatcher.Route {
	return []dispatcher.Route{
		{
			MsgID:  proto.MT_REQ_BAG_INFO,
			Target: dispatcher.SessionActor,
			Comp:   CompName,
			Handle: func(ctx context.Context, req *dispatcher.Request) error {
				c := req.Comp.(*Comp)
				return req.Reply(&proto.RespBagInfo{Items: c.itemInfos()})
			},
		},
		{
			MsgID:  proto.MT_REQ_ADD_ITEM,
			Target: dispatcher.SessionActor,
			Comp:   CompName,
			Handle: func(ctx context.Context, req *dispatcher.Request) error {
				c := req.Comp.(*Comp)
				msg := req.Msg.(*proto.ReqAddItem)
				if err := c.addItem(msg.ItemId, msg.Count); err != nil {
					return err
				}
				return req.Reply(&proto.RespBagInfo{Items: c.itemInfos()})
			},
		},
	}
}
