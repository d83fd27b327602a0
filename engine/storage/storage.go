// Package storage opens the configured state store and wraps it with
// operation monitoring, reconnection and persistence error wrapping.
package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/opmon"
	storagefilesystem "github.com/xiaonanln/gwactor/engine/storage/backend/filesystem"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
	storagemongodb "github.com/xiaonanln/gwactor/engine/storage/backend/mongodb"
	storageredis "github.com/xiaonanln/gwactor/engine/storage/backend/redis"
	"github.com/xiaonanln/gwactor/engine/storage/storagecommon"
)

// Store is the persistence contract of actor states
type Store = storagecommon.Store

// Filter selects documents by equality on top-level fields
type Filter = storagecommon.Filter

var (
	// ErrPersistence wraps every failure of the store
	ErrPersistence = storagecommon.ErrPersistence
	// ErrNotFound is used by backends internally for missing documents
	ErrNotFound = storagecommon.ErrNotFound
)

// OpenBackend opens the raw backend described by cfg
func OpenBackend(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return storagememory.Open(), nil
	case "filesystem":
		return storagefilesystem.OpenDirectory(cfg.Directory)
	case "mongodb":
		return storagemongodb.OpenMongoDB(cfg.Url, cfg.DB)
	case "redis":
		dbindex, err := strconv.Atoi(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "redis db must be integer")
		}
		return storageredis.OpenRedis(cfg.Url, dbindex)
	}
	return nil, errors.Errorf("unknown storage type: %s", cfg.Type)
}

// Open opens the store described by cfg, monitored and reconnecting
func Open(cfg *config.StorageConfig) (Store, error) {
	cfgCopy := *cfg
	backend, err := OpenBackend(&cfgCopy)
	if err != nil {
		return nil, storagecommon.Wrap(err, "open %s storage", cfg.Type)
	}
	gwlog.Infof("storage: %s opened", cfg.Type)
	return newMonitored(backend, func() (Store, error) {
		return OpenBackend(&cfgCopy)
	}), nil
}

// Monitored wraps a store with opmon and persistence error wrapping, without reconnection
func Monitored(backend Store) Store {
	return newMonitored(backend, nil)
}

type monitoredStore struct {
	lock    sync.RWMutex
	backend Store
	reopen  func() (Store, error)
}

func newMonitored(backend Store, reopen func() (Store, error)) *monitoredStore {
	return &monitoredStore{backend: backend, reopen: reopen}
}

func (ms *monitoredStore) current() Store {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.backend
}

// do runs op on the backend; a lost connection is reopened and op retried once
func (ms *monitoredStore) do(ctx context.Context, opname string, op func(backend Store) error) error {
	if err := ctx.Err(); err != nil {
		return storagecommon.Wrap(err, "%s", opname)
	}

	monop := opmon.StartOperation(opname)
	defer monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)

	backend := ms.current()
	err := op(backend)
	if err != nil && ms.reopen != nil && backend.IsEOF(err) {
		gwlog.Errorf("%s: connection lost: %v, reconnecting ...", opname, err)
		if backend, err = ms.reconnect(backend); err == nil {
			err = op(backend)
		}
	}
	if err != nil {
		if consts.DEBUG_SAVE_LOAD {
			gwlog.Debugf("%s failed: %v", opname, err)
		}
		return storagecommon.Wrap(err, "%s", opname)
	}
	return nil
}

func (ms *monitoredStore) reconnect(broken Store) (Store, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if ms.backend != broken {
		// reconnected by another caller
		return ms.backend, nil
	}
	broken.Close()
	for retry := 0; retry < 3; retry++ {
		backend, err := ms.reopen()
		if err == nil {
			ms.backend = backend
			return backend, nil
		}
		gwlog.Errorf("storage: reconnect failed: %v", err)
		time.Sleep(time.Second)
	}
	return broken, errors.New("storage: reconnect failed")
}

func (ms *monitoredStore) Load(ctx context.Context, coll string, id int64, out interface{}) (found bool, err error) {
	err = ms.do(ctx, "storage.load", func(backend Store) (err error) {
		found, err = backend.Load(ctx, coll, id, out)
		return
	})
	return
}

func (ms *monitoredStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	return ms.do(ctx, "storage.save", func(backend Store) error {
		return backend.Save(ctx, coll, id, doc)
	})
}

func (ms *monitoredStore) Find(ctx context.Context, coll string, filter Filter, out interface{}) (found bool, err error) {
	err = ms.do(ctx, "storage.find", func(backend Store) (err error) {
		found, err = backend.Find(ctx, coll, filter, out)
		return
	})
	return
}

func (ms *monitoredStore) FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error {
	return ms.do(ctx, "storage.findlist", func(backend Store) error {
		return backend.FindList(ctx, coll, filter, outSlicePtr)
	})
}

func (ms *monitoredStore) Count(ctx context.Context, coll string, filter Filter) (n int, err error) {
	err = ms.do(ctx, "storage.count", func(backend Store) (err error) {
		n, err = backend.Count(ctx, coll, filter)
		return
	})
	return
}

func (ms *monitoredStore) Delete(ctx context.Context, coll string, filter Filter) (n int, err error) {
	err = ms.do(ctx, "storage.delete", func(backend Store) (err error) {
		n, err = backend.Delete(ctx, coll, filter)
		return
	})
	return
}

func (ms *monitoredStore) Close() error {
	return ms.current().Close()
}

func (ms *monitoredStore) IsEOF(err error) bool {
	return ms.current().IsEOF(err)
}
