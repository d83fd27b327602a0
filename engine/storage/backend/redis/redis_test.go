package storageredis

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/xiaonanln/gwactor/engine/storage/storagetest"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("GWACTOR_TEST_REDIS")
	if url == "" {
		t.Skip("GWACTOR_TEST_REDIS not set")
	}
	es, err := OpenRedis(url, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer es.Close()
	storagetest.TestStore(t, es, "Doc"+strconv.FormatInt(time.Now().UnixNano(), 36))
}
