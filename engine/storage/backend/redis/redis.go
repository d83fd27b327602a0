// Package storageredis stores msgpack encoded documents in Redis under coll$id keys.
package storageredis

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	. "github.com/xiaonanln/gwactor/engine/storage/storagecommon"
)

const scanCount = 10000

type redisStore struct {
	pool *redis.Pool
}

// OpenRedis opens redis as state storage
func OpenRedis(url string, dbindex int) (Store, error) {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(url, redis.DialDatabase(dbindex))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	c := pool.Get()
	defer c.Close()
	if _, err := c.Do("PING"); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "redis dial failed")
	}
	return &redisStore{pool: pool}, nil
}

func docKey(coll string, id int64) string {
	return coll + "$" + strconv.FormatInt(id, 10)
}

func (es *redisStore) Load(ctx context.Context, coll string, id int64, out interface{}) (bool, error) {
	c := es.pool.Get()
	defer c.Close()
	b, err := redis.Bytes(c.Do("GET", docKey(coll, id)))
	if err == redis.ErrNil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, DecodeDoc(b, out)
}

func (es *redisStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	b, err := EncodeDoc(doc)
	if err != nil {
		return err
	}
	c := es.pool.Get()
	defer c.Close()
	_, err = c.Do("SET", docKey(coll, id), b)
	return err
}

func isZeroCursor(c interface{}) bool {
	return string(c.([]byte)) == "0"
}

// list returns the ids of all documents in coll, ordered
func (es *redisStore) list(c redis.Conn, coll string) ([]int64, error) {
	prefix := coll + "$"
	keyMatch := prefix + "*"
	var ids []int64
	var cursor interface{} = "0"
	for {
		r, err := redis.Values(c.Do("SCAN", cursor, "MATCH", keyMatch, "COUNT", scanCount))
		if err != nil {
			return nil, err
		}
		keys, err := redis.Strings(r[1], nil)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
			if err == nil {
				ids = append(ids, id)
			}
		}
		cursor = r[0]
		if isZeroCursor(cursor) {
			break
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (es *redisStore) match(ctx context.Context, coll string, filter Filter, limit int) ([]int64, [][]byte, error) {
	c := es.pool.Get()
	defer c.Close()
	ids, err := es.list(c, coll)
	if err != nil {
		return nil, nil, err
	}

	var matchedIDs []int64
	var matched [][]byte
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		b, err := redis.Bytes(c.Do("GET", docKey(coll, id)))
		if err == redis.ErrNil {
			continue
		} else if err != nil {
			return nil, nil, err
		}
		ok, err := MatchDoc(b, filter)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			matchedIDs = append(matchedIDs, id)
			matched = append(matched, b)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matchedIDs, matched, nil
}

func (es *redisStore) Find(ctx context.Context, coll string, filter Filter, out interface{}) (bool, error) {
	_, docs, err := es.match(ctx, coll, filter, 1)
	if err != nil || len(docs) == 0 {
		return false, err
	}
	return true, DecodeDoc(docs[0], out)
}

func (es *redisStore) FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error {
	_, docs, err := es.match(ctx, coll, filter, 0)
	if err != nil {
		return err
	}
	return DecodeDocList(docs, outSlicePtr)
}

func (es *redisStore) Count(ctx context.Context, coll string, filter Filter) (int, error) {
	_, docs, err := es.match(ctx, coll, filter, 0)
	return len(docs), err
}

func (es *redisStore) Delete(ctx context.Context, coll string, filter Filter) (int, error) {
	ids, _, err := es.match(ctx, coll, filter, 0)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = docKey(coll, id)
	}
	c := es.pool.Get()
	defer c.Close()
	return redis.Int(c.Do("DEL", keys...))
}

func (es *redisStore) Close() error {
	return es.pool.Close()
}

func (es *redisStore) IsEOF(err error) bool {
	err = errors.Cause(err)
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
