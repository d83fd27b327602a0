package bag

import (
	"context"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
)

func init() {
	Register()
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	m := actor.NewManager(storagememory.Open())
	roleID, err := idgen.NewShardedID(idgen.Role, 1001)
	assert.Equal(t, nil, err)

	bag, err := actor.ComponentOf[*Comp](ctx, m, roleID, CompName)
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, bag.AddItem(ctx, 101, 5))
	assert.Equal(t, nil, bag.AddItem(ctx, 101, 3))
	assert.Equal(t, nil, bag.AddItem(ctx, 102, 1))
	items, err := bag.Items(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))
	assert.Equal(t, int32(101), items[0].ItemId)
	assert.Equal(t, int64(8), items[0].Count)
	module, err := idgen.DecodeUniqueModule(items[0].Uid)
	assert.Equal(t, nil, err)
	assert.Equal(t, idgen.ModuleItem, module)
	assert.T(t, items[0].Uid != items[1].Uid)

	err = bag.AddItem(ctx, 102, -2)
	assert.Equal(t, proto.ItemNotEnough, errors.Cause(err))
	assert.Equal(t, nil, bag.AddItem(ctx, 102, -1))
	items, _ = bag.Items(ctx)
	assert.Equal(t, 1, len(items))
}

func TestBagSaved(t *testing.T) {
	ctx := context.Background()
	store := storagememory.Open()
	m := actor.NewManager(store)
	roleID, _ := idgen.NewShardedID(idgen.Role, 1001)

	bag, err := actor.ComponentOf[*Comp](ctx, m, roleID, CompName)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, bag.AddItem(ctx, 7, 70))
	assert.Equal(t, nil, m.Remove(ctx, roleID))

	m2 := actor.NewManager(store)
	bag, err = actor.ComponentOf[*Comp](ctx, m2, roleID, CompName)
	assert.Equal(t, nil, err)
	items, err := bag.Items(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, int64(70), items[0].Count)
}
