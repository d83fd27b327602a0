// Package storagememory keeps msgpack encoded documents in process memory.
package storagememory

import (
	"context"
	"sort"
	"sync"

	. "github.com/xiaonanln/gwactor/engine/storage/storagecommon"
)

type memoryStore struct {
	lock  sync.RWMutex
	colls map[string]map[int64][]byte
}

// Open creates an empty memory store
func Open() Store {
	return &memoryStore{colls: map[string]map[int64][]byte{}}
}

func (ms *memoryStore) Load(ctx context.Context, coll string, id int64, out interface{}) (bool, error) {
	ms.lock.RLock()
	data, ok := ms.colls[coll][id]
	ms.lock.RUnlock()
	if !ok {
		return false, nil
	}
	return true, DecodeDoc(data, out)
}

func (ms *memoryStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	data, err := EncodeDoc(doc)
	if err != nil {
		return err
	}
	ms.lock.Lock()
	docs := ms.colls[coll]
	if docs == nil {
		docs = map[int64][]byte{}
		ms.colls[coll] = docs
	}
	docs[id] = data
	ms.lock.Unlock()
	return nil
}

// match returns the ids and documents matching filter, ordered by id
func (ms *memoryStore) match(coll string, filter Filter) ([]int64, [][]byte, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	docs := ms.colls[coll]
	ids := make([]int64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matchedIDs []int64
	var matched [][]byte
	for _, id := range ids {
		ok, err := MatchDoc(docs[id], filter)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			matchedIDs = append(matchedIDs, id)
			matched = append(matched, docs[id])
		}
	}
	return matchedIDs, matched, nil
}

func (ms *memoryStore) Find(ctx context.Context, coll string, filter Filter, out interface{}) (bool, error) {
	_, docs, err := ms.match(coll, filter)
	if err != nil || len(docs) == 0 {
		return false, err
	}
	return true, DecodeDoc(docs[0], out)
}

func (ms *memoryStore) FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error {
	_, docs, err := ms.match(coll, filter)
	if err != nil {
		return err
	}
	return DecodeDocList(docs, outSlicePtr)
}

func (ms *memoryStore) Count(ctx context.Context, coll string, filter Filter) (int, error) {
	_, docs, err := ms.match(coll, filter)
	return len(docs), err
}

func (ms *memoryStore) Delete(ctx context.Context, coll string, filter Filter) (int, error) {
	ids, _, err := ms.match(coll, filter)
	if err != nil {
		return 0, err
	}
	ms.lock.Lock()
	for _, id := range ids {
		delete(ms.colls[coll], id)
	}
	ms.lock.Unlock()
	return len(ids), nil
}

func (ms *memoryStore) Close() error {
	return nil
}

func (ms *memoryStore) IsEOF(err error) bool {
	return false
}
