// Package storagetest checks storage backends against the Store contract.
package storagetest

import (
	"context"
	"testing"

	"github.com/bmizerany/assert"
	. "github.com/xiaonanln/gwactor/engine/storage/storagecommon"
)

// Doc is the document type used by TestStore
type Doc struct {
	Id    int64            `bson:"_id" msgpack:"_id"`
	Name  string           `bson:"Name" msgpack:"Name"`
	Level int32            `bson:"Level" msgpack:"Level"`
	Bag   map[string]int64 `bson:"Bag" msgpack:"Bag"`
}

// TestStore runs the Store contract against es, using collection coll which must be empty
func TestStore(t *testing.T, es Store, coll string) {
	ctx := context.Background()

	var d Doc
	found, err := es.Load(ctx, coll, 1, &d)
	assert.Equal(t, nil, err)
	assert.T(t, !found, "should not be found")

	for i := int64(1); i <= 6; i++ {
		doc := &Doc{Id: i, Name: "doc", Level: int32(i % 3), Bag: map[string]int64{"gold": i * 10}}
		assert.Equal(t, nil, es.Save(ctx, coll, i, doc))
	}
	// saving twice is an upsert
	assert.Equal(t, nil, es.Save(ctx, coll, 6, &Doc{Id: 6, Name: "six", Level: 0}))

	found, err = es.Load(ctx, coll, 2, &d)
	assert.Equal(t, nil, err)
	assert.T(t, found, "should be found")
	assert.Equal(t, int64(2), d.Id)
	assert.Equal(t, int64(20), d.Bag["gold"])

	n, err := es.Count(ctx, coll, Filter{"Level": 1})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, n)

	n, err = es.Count(ctx, coll, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, n)

	var list []Doc
	assert.Equal(t, nil, es.FindList(ctx, coll, Filter{"Level": int64(0)}, &list))
	assert.Equal(t, 2, len(list))
	assert.Equal(t, int64(3), list[0].Id)
	assert.Equal(t, "six", list[1].Name)

	found, err = es.Find(ctx, coll, Filter{"Name": "six"}, &d)
	assert.Equal(t, nil, err)
	assert.T(t, found, "should find")
	assert.Equal(t, int64(6), d.Id)

	found, err = es.Find(ctx, coll, Filter{"Name": "nobody"}, &d)
	assert.Equal(t, nil, err)
	assert.T(t, !found, "should not find")

	deleted, err := es.Delete(ctx, coll, Filter{"Level": 2})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, deleted)
	n, _ = es.Count(ctx, coll, nil)
	assert.Equal(t, 4, n)

	deleted, err = es.Delete(ctx, coll, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, deleted)
}
