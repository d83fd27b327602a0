package kvdbredis

import (
	"io"

	"github.com/garyburd/redigo/redis"
	"github.com/google/btree"
	"github.com/pkg/errors"
	. "github.com/xiaonanln/gwactor/engine/kvdb/types"
)

const (
	keyPrefix = "_KV_"
)

type redisKVDB struct {
	c       redis.Conn
	keyTree *btree.BTree
}

type keyTreeItem struct {
	key string
}

func (ki keyTreeItem) Less(_other btree.Item) bool {
	return ki.key < _other.(keyTreeItem).key
}

// OpenRedisKVDB opens Redis for KVDB backend
//
// All existing keys are scanned into an ordered key tree so that Find can serve ranges.
func OpenRedisKVDB(url string, dbindex int) (KVDBEngine, error) {
	c, err := redis.DialURL(url, redis.DialDatabase(dbindex))
	if err != nil {
		return nil, errors.Wrap(err, "redis dail failed")
	}

	db := &redisKVDB{
		c:       c,
		keyTree: btree.New(2),
	}
	if err := db.initialize(); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "redis kvdb initialize failed")
	}

	return db, nil
}

func (db *redisKVDB) initialize() error {
	keyMatch := keyPrefix + "*"
	cursor := interface{}("0")
	for {
		r, err := redis.Values(db.c.Do("SCAN", cursor, "MATCH", keyMatch, "COUNT", 10000))
		if err != nil {
			return err
		}
		keys, err := redis.Strings(r[1], nil)
		if err != nil {
			return err
		}
		for _, key := range keys {
			db.keyTree.ReplaceOrInsert(keyTreeItem{key[len(keyPrefix):]})
		}

		cursor = r[0]
		if db.isZeroCursor(cursor) {
			break
		}
	}
	return nil
}

func (db *redisKVDB) isZeroCursor(c interface{}) bool {
	return string(c.([]byte)) == "0"
}

func (db *redisKVDB) Get(key string) (val string, err error) {
	val, err = redis.String(db.c.Do("GET", keyPrefix+key))
	if err == redis.ErrNil {
		return "", nil
	}
	return
}

func (db *redisKVDB) Put(key string, val string) error {
	_, err := db.c.Do("SET", keyPrefix+key, val)
	if err == nil {
		db.keyTree.ReplaceOrInsert(keyTreeItem{key})
	}
	return err
}

type redisKVDBIterator struct {
	db       *redisKVDB
	leftKeys []string
}

func (it *redisKVDBIterator) Next() (KVItem, error) {
	if len(it.leftKeys) == 0 {
		return KVItem{}, io.EOF
	}

	key := it.leftKeys[0]
	it.leftKeys = it.leftKeys[1:]
	val, err := it.db.Get(key)
	if err != nil {
		return KVItem{}, err
	}

	return KVItem{Key: key, Val: val}, nil
}

func (db *redisKVDB) Find(beginKey string, endKey string) (Iterator, error) {
	var keys []string
	db.keyTree.AscendRange(keyTreeItem{beginKey}, keyTreeItem{endKey}, func(it btree.Item) bool {
		keys = append(keys, it.(keyTreeItem).key)
		return true
	})

	return &redisKVDBIterator{
		db:       db,
		leftKeys: keys,
	}, nil
}

func (db *redisKVDB) Close() {
	db.c.Close()
}

func (db *redisKVDB) IsConnectionError(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
