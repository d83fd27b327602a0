package binutil

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

func TestSetupGWLog(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "binutil_test.log")
	SetupGWLog("binutil_test", "info", logFile, false)
	gwlog.Infof("to the log file")
	gwlog.Sync()
	assert.Equal(t, gwlog.InfoLevel, gwlog.GetLevel())

	_, err := os.Stat(logFile)
	assert.Equal(t, nil, err)
	SetupGWLog("binutil_test", "debug", "", true)
}

func TestSetupHTTPServer(t *testing.T) {
	assert.T(t, SetupHTTPServer(context.Background(), "", nil) == nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := SetupHTTPServer(ctx, "127.0.0.1:28771", map[string]http.Handler{
		"/hello": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "hello")
		}),
	})
	assert.T(t, srv != nil)

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		if resp, err = http.Get("http://127.0.0.1:28771/hello"); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, nil, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))
}
