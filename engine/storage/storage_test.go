package storage

import (
	"context"
	"io"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/config"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
	"github.com/xiaonanln/gwactor/engine/storage/storagetest"
)

func TestOpenMemory(t *testing.T) {
	es, err := Open(&config.StorageConfig{Type: "memory"})
	assert.Equal(t, nil, err)
	storagetest.TestStore(t, es, "Doc")
}

func TestOpenFileSystem(t *testing.T) {
	es, err := Open(&config.StorageConfig{Type: "filesystem", Directory: t.TempDir()})
	assert.Equal(t, nil, err)
	storagetest.TestStore(t, es, "Doc")
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(&config.StorageConfig{Type: "nosuchdb"})
	assert.Equal(t, ErrPersistence, errors.Cause(err))
}

// flakyStore fails the first operation with io.EOF
type flakyStore struct {
	Store
	failed *bool
}

func (fs flakyStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	if !*fs.failed {
		*fs.failed = true
		return io.EOF
	}
	return fs.Store.Save(ctx, coll, id, doc)
}

func (fs flakyStore) IsEOF(err error) bool {
	return err == io.EOF
}

func TestReconnectOnEOF(t *testing.T) {
	failed := false
	mem := storagememory.Open()
	reopened := 0
	ms := newMonitored(flakyStore{mem, &failed}, func() (Store, error) {
		reopened++
		return flakyStore{mem, &failed}, nil
	})
	ctx := context.Background()
	assert.Equal(t, nil, ms.Save(ctx, "Doc", 1, &storagetest.Doc{Id: 1}))
	assert.Equal(t, 1, reopened)

	var d storagetest.Doc
	found, err := ms.Load(ctx, "Doc", 1, &d)
	assert.Equal(t, nil, err)
	assert.T(t, found, "saved doc should be found")
}

func TestErrorsAreWrapped(t *testing.T) {
	ms := Monitored(storagememory.Open())
	var notSlice int
	err := ms.FindList(context.Background(), "Doc", nil, &notSlice)
	assert.Equal(t, ErrPersistence, errors.Cause(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ms.Save(ctx, "Doc", 1, &storagetest.Doc{})
	assert.Equal(t, ErrPersistence, errors.Cause(err))
}
