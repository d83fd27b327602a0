package kvdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/kvdb/backend/kvdbmemory"
	. "github.com/xiaonanln/gwactor/engine/kvdb/types"
)

func openMemoryKVDB(t *testing.T) *KVDB {
	db, err := Open(&config.KVDBConfig{Type: "memory", StartNodes: config.NodeSet{}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	return db
}

func testKVDBSet(t *testing.T, db *KVDB) {
	ctx := context.Background()
	val, err := db.Get(ctx, "__key_not_exists__")
	if err != nil || val != "" {
		t.Fatalf("get missing key: %q %v", val, err)
	}

	for i := 0; i < 100; i++ {
		key := "set" + strconv.Itoa(i)
		val := strconv.Itoa(i * 7)
		if err := db.Put(ctx, key, val); err != nil {
			t.Fatal(err)
		}
		verifyVal, err := db.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, val, verifyVal)
	}
}

func testKVDBGetRange(t *testing.T, db *KVDB) {
	ctx := context.Background()
	for i := 1000; i < 1100; i++ {
		if err := db.Put(ctx, fmt.Sprintf("range%d", i), strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}

	items, err := db.GetRange(ctx, "range1010", "range1020")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 10, len(items))
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("range%d", 1010+i), item.Key)
		assert.Equal(t, strconv.Itoa(1010+i), item.Val)
	}

	items, err = db.GetRange(ctx, "range1099", NextLargerKey("range1099"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []KVItem{{Key: "range1099", Val: "1099"}}, items)
}

func TestMemoryKVDBSet(t *testing.T) {
	testKVDBSet(t, openMemoryKVDB(t))
}

func TestMemoryKVDBGetRange(t *testing.T) {
	testKVDBGetRange(t, openMemoryKVDB(t))
}

func TestGetOrPut(t *testing.T) {
	db := openMemoryKVDB(t)
	ctx := context.Background()

	val, err := db.GetOrPut(ctx, "account:alice", "100")
	assert.Equal(t, nil, err)
	assert.Equal(t, "100", val)

	val, err = db.GetOrPut(ctx, "account:alice", "200")
	assert.Equal(t, nil, err)
	assert.Equal(t, "100", val)
}

func TestGetOrPutConcurrent(t *testing.T) {
	db := openMemoryKVDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := db.GetOrPut(ctx, "account:bob", strconv.Itoa(i))
			if err != nil {
				t.Error(err)
			}
			results[i] = val
		}(i)
	}
	wg.Wait()

	for _, val := range results {
		assert.Equal(t, results[0], val)
	}
}

type blockingEngine struct {
	KVDBEngine
	release chan struct{}
}

func (e *blockingEngine) Get(key string) (string, error) {
	<-e.release
	return e.KVDBEngine.Get(key)
}

func TestContextCancelled(t *testing.T) {
	engine := &blockingEngine{KVDBEngine: kvdbmemory.OpenMemoryKVDB(), release: make(chan struct{})}
	db := OpenEngine(engine)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := db.Get(ctx, "k")
	assert.T(t, err != nil)

	close(engine.release)
	db.Close()
}

func TestClosed(t *testing.T) {
	db := OpenEngine(kvdbmemory.OpenMemoryKVDB())
	db.Close()
	db.Close()
	err := db.Put(context.Background(), "k", "v")
	assert.Equal(t, ErrClosed, err)
}

func TestUnknownType(t *testing.T) {
	_, err := Open(&config.KVDBConfig{Type: "leveldb"})
	assert.T(t, err != nil)
}

func TestMongoKVDB(t *testing.T) {
	url := os.Getenv("GWACTOR_TEST_MONGODB")
	if url == "" {
		t.Skip("GWACTOR_TEST_MONGODB not set")
	}
	db, err := Open(&config.KVDBConfig{Type: "mongodb", Url: url, DB: "gwactor_test", Collection: "__kv_test__"})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	testKVDBSet(t, db)
	testKVDBGetRange(t, db)
}

func TestRedisKVDB(t *testing.T) {
	url := os.Getenv("GWACTOR_TEST_REDIS")
	if url == "" {
		t.Skip("GWACTOR_TEST_REDIS not set")
	}
	db, err := Open(&config.KVDBConfig{Type: "redis", Url: url, DB: "1"})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	testKVDBSet(t, db)
	testKVDBGetRange(t, db)
}
