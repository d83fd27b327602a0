package storagefilesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwactor/engine/storage/storagetest"
)

func TestFileSystemStore(t *testing.T) {
	es, err := OpenDirectory(t.TempDir())
	assert.Equal(t, nil, err)
	storagetest.TestStore(t, es, "Doc")
}

func TestIgnoreForeignFiles(t *testing.T) {
	dir := t.TempDir()
	es, _ := OpenDirectory(dir)
	assert.Equal(t, nil, os.WriteFile(filepath.Join(dir, "Doc$abc.msgpack"), []byte{0xc0}, 0644))
	assert.Equal(t, nil, es.Save(context.Background(), "Doc", 1, &storagetest.Doc{Id: 1}))
	n, err := es.Count(context.Background(), "Doc", nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, n)
}
