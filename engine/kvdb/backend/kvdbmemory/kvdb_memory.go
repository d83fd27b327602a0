package kvdbmemory

import (
	"io"

	"github.com/google/btree"
	. "github.com/xiaonanln/gwactor/engine/kvdb/types"
)

type memoryKVDB struct {
	tree *btree.BTree
}

type kvItem struct {
	key string
	val string
}

func (it kvItem) Less(other btree.Item) bool {
	return it.key < other.(kvItem).key
}

// OpenMemoryKVDB opens an in-process KVDB, used by tests and single server deployments without database
func OpenMemoryKVDB() KVDBEngine {
	return &memoryKVDB{
		tree: btree.New(8),
	}
}

func (db *memoryKVDB) Get(key string) (string, error) {
	item := db.tree.Get(kvItem{key: key})
	if item == nil {
		return "", nil
	}
	return item.(kvItem).val, nil
}

func (db *memoryKVDB) Put(key string, val string) error {
	db.tree.ReplaceOrInsert(kvItem{key, val})
	return nil
}

type memoryKVDBIterator struct {
	items []KVItem
}

func (it *memoryKVDBIterator) Next() (KVItem, error) {
	if len(it.items) == 0 {
		return KVItem{}, io.EOF
	}
	item := it.items[0]
	it.items = it.items[1:]
	return item, nil
}

func (db *memoryKVDB) Find(beginKey string, endKey string) (Iterator, error) {
	var items []KVItem
	db.tree.AscendRange(kvItem{key: beginKey}, kvItem{key: endKey}, func(it btree.Item) bool {
		kv := it.(kvItem)
		items = append(items, KVItem{Key: kv.key, Val: kv.val})
		return true
	})
	return &memoryKVDBIterator{items: items}, nil
}

func (db *memoryKVDB) Close() {
	db.tree.Clear(false)
}

func (db *memoryKVDB) IsConnectionError(err error) bool {
	return false
}
