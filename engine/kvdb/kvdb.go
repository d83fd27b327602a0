// Package kvdb provides a small key-value database shared by the whole server,
// e.g. to map user names to account ids.
//
// All operations are executed one by one by a single routine, so a GetOrPut is atomic
// with respect to every other operation on the same KVDB.
package kvdb

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbmemory"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbmongodb"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbredis"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbrediscluster"
	. "github.com/xiaonanln/gwactor/engine/kvdb/types"
	"github.com/xiaonanln/gwactor/engine/opmon"
)

// ErrClosed is returned by operations on a closed KVDB
var ErrClosed = errors.New("kvdb closed")

// KVDB serializes operations over one KVDB engine
type KVDB struct {
	cfg        config.KVDBConfig
	engine     KVDBEngine
	opQueue    *xnsyncutil.SyncQueue
	terminated *xnsyncutil.OneTimeCond
	closed     xnsyncutil.AtomicBool

	recentWarnedQueueLen int64
}

// Open opens the KVDB described by cfg and starts its operation routine
func Open(cfg *config.KVDBConfig) (*KVDB, error) {
	gwlog.Infof("KVDB initializing, config:\n%s", config.DumpPretty(cfg))
	engine, err := openEngine(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s kvdb", cfg.Type)
	}
	return newKVDB(cfg, engine), nil
}

// OpenEngine starts a KVDB over an already opened engine, which is never reconnected
func OpenEngine(engine KVDBEngine) *KVDB {
	return newKVDB(&config.KVDBConfig{Type: "memory"}, engine)
}

func newKVDB(cfg *config.KVDBConfig, engine KVDBEngine) *KVDB {
	db := &KVDB{
		cfg:        *cfg,
		engine:     engine,
		opQueue:    xnsyncutil.NewSyncQueue(),
		terminated: xnsyncutil.NewOneTimeCond(),
	}
	go db.routine()
	return db
}

func openEngine(cfg *config.KVDBConfig) (KVDBEngine, error) {
	switch cfg.Type {
	case "", "memory":
		return kvdbmemory.OpenMemoryKVDB(), nil
	case "mongodb":
		return kvdbmongodb.OpenMongoKVDB(cfg.Url, cfg.DB, cfg.Collection)
	case "redis":
		dbindex, err := strconv.Atoi(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "redis db must be integer")
		}
		return kvdbredis.OpenRedisKVDB(cfg.Url, dbindex)
	case "redis_cluster":
		return kvdbrediscluster.OpenRedisKVDB(cfg.StartNodes.List())
	}
	return nil, errors.Errorf("KVDB type %s is not implemented", cfg.Type)
}

type opResult struct {
	val   string
	items []KVItem
	err   error
}

type kvdbReq interface {
	opname() string
	execute(engine KVDBEngine) opResult
}

type pendingReq struct {
	req  kvdbReq
	res  opResult
	done chan struct{}
}

type getReq struct{ key string }

func (r *getReq) opname() string { return "kvdb.get" }

func (r *getReq) execute(engine KVDBEngine) opResult {
	val, err := engine.Get(r.key)
	return opResult{val: val, err: err}
}

type putReq struct{ key, val string }

func (r *putReq) opname() string { return "kvdb.put" }

func (r *putReq) execute(engine KVDBEngine) opResult {
	return opResult{err: engine.Put(r.key, r.val)}
}

type getOrPutReq struct{ key, val string }

func (r *getOrPutReq) opname() string { return "kvdb.getOrPut" }

func (r *getOrPutReq) execute(engine KVDBEngine) opResult {
	val, err := engine.Get(r.key)
	if err != nil || val != "" {
		return opResult{val: val, err: err}
	}
	if err = engine.Put(r.key, r.val); err != nil {
		return opResult{err: err}
	}
	return opResult{val: r.val}
}

type getRangeReq struct{ beginKey, endKey string }

func (r *getRangeReq) opname() string { return "kvdb.getRange" }

func (r *getRangeReq) execute(engine KVDBEngine) opResult {
	it, err := engine.Find(r.beginKey, r.endKey)
	if err != nil {
		return opResult{err: err}
	}
	items, err := ReadAll(it)
	if err != nil {
		return opResult{err: err}
	}
	return opResult{items: items}
}

// Get returns the value of key, or "" if key does not exist
func (db *KVDB) Get(ctx context.Context, key string) (string, error) {
	res, err := db.call(ctx, &getReq{key})
	return res.val, err
}

// Put sets the value of key
func (db *KVDB) Put(ctx context.Context, key string, val string) error {
	_, err := db.call(ctx, &putReq{key, val})
	return err
}

// GetOrPut returns the existing value of key, or puts val and returns it if key does not exist
func (db *KVDB) GetOrPut(ctx context.Context, key string, val string) (string, error) {
	res, err := db.call(ctx, &getOrPutReq{key, val})
	return res.val, err
}

// GetRange returns all items with beginKey <= key < endKey, ordered by key
func (db *KVDB) GetRange(ctx context.Context, beginKey string, endKey string) ([]KVItem, error) {
	res, err := db.call(ctx, &getRangeReq{beginKey, endKey})
	return res.items, err
}

// NextLargerKey returns the next string that is larger than key, but smaller than any other keys > key
func NextLargerKey(key string) string {
	return key + "\x00"
}

func (db *KVDB) call(ctx context.Context, req kvdbReq) (opResult, error) {
	if db.closed.Load() {
		return opResult{}, ErrClosed
	}

	pr := &pendingReq{req: req, done: make(chan struct{})}
	db.opQueue.Push(pr)
	db.checkOperationQueueLen()

	select {
	case <-pr.done:
		if pr.res.err != nil {
			return pr.res, errors.Wrap(pr.res.err, req.opname())
		}
		return pr.res, nil
	case <-ctx.Done():
		return opResult{}, errors.Wrap(ctx.Err(), req.opname())
	}
}

// Close stops the operation routine after all queued operations are executed and closes the engine
func (db *KVDB) Close() {
	if db.closed.Load() {
		return
	}
	db.closed.Store(true)
	db.opQueue.Close()
	db.terminated.Wait()
}

func (db *KVDB) checkOperationQueueLen() {
	qlen := db.opQueue.Len()
	if qlen > consts.KVDB_OP_QUEUE_MAX_LEN && qlen%100 == 0 && atomic.SwapInt64(&db.recentWarnedQueueLen, int64(qlen)) != int64(qlen) {
		gwlog.Warnf("KVDB operation queue length = %d", qlen)
	}
}

func (db *KVDB) assureEngineReady() (err error) {
	if db.engine != nil {
		return
	}
	db.engine, err = openEngine(&db.cfg)
	return
}

func (db *KVDB) routine() {
	for {
		if err := db.assureEngineReady(); err != nil {
			gwlog.Errorf("KVDB engine is not ready: %s", err)
			time.Sleep(time.Second)
			continue
		}

		item := db.opQueue.Pop()
		if item == nil { // queue is closed, returning nil
			db.engine.Close()
			break
		}

		pr := item.(*pendingReq)
		op := opmon.StartOperation(pr.req.opname())
		pr.res = pr.req.execute(db.engine)
		op.Finish(consts.KVDB_OPERATION_WARN_THRESHOLD)

		if pr.res.err != nil && db.engine.IsConnectionError(pr.res.err) {
			gwlog.Errorf("KVDB connection lost: %v", pr.res.err)
			db.engine.Close()
			db.engine = nil
		}
		close(pr.done)
	}

	db.terminated.Signal()
}
