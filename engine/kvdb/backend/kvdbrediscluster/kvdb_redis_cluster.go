package kvdbrediscluster

import (
	"io"
	"time"

	"github.com/chasex/redis-go-cluster"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/kvdb/types"
)

const (
	keyPrefix = "_KV_"
)

// ErrRangeNotSupported is returned by Find since keys are spread over the cluster nodes
var ErrRangeNotSupported = errors.New("range query not supported on redis cluster")

type redisClusterKVDB struct {
	c redis.Cluster
}

// OpenRedisKVDB opens Redis Cluster for KVDB backend
func OpenRedisKVDB(startNodes []string) (kvdbtypes.KVDBEngine, error) {
	c, err := redis.NewCluster(&redis.Options{
		StartNodes:   startNodes,
		ConnTimeout:  10 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		KeepAlive:    1,
		AliveTime:    10 * time.Minute,
	})
	if err != nil {
		return nil, errors.Wrap(err, "redis cluster dail failed")
	}

	return &redisClusterKVDB{
		c: c,
	}, nil
}

func (db *redisClusterKVDB) Get(key string) (val string, err error) {
	r, err := db.c.Do("GET", keyPrefix+key)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	return string(r.([]byte)), nil
}

func (db *redisClusterKVDB) Put(key string, val string) error {
	_, err := db.c.Do("SET", keyPrefix+key, val)
	return err
}

func (db *redisClusterKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	return nil, ErrRangeNotSupported
}

// Close does nothing: the cluster client keeps its node pools until the process exits
func (db *redisClusterKVDB) Close() {
}

func (db *redisClusterKVDB) IsConnectionError(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
