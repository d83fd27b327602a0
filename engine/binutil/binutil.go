package binutil

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"path/filepath"
	"time"

	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// SetupHTTPServer starts the HTTP server for go tool pprof, websockets and admin commands.
// Handlers are mounted by path prefix. The server is shut down when ctx is done.
func SetupHTTPServer(ctx context.Context, addr string, handlers map[string]http.Handler) *http.Server {
	if addr == "" {
		gwlog.Infof("http server not enabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	for path, h := range handlers {
		mux.Handle(path, h)
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	gwlog.Infof("http server listening on %s", addr)
	gwlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", addr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/heap", addr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/profile", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gwlog.Errorf("http server failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	return srv
}

// SetupGWLog setup the log system: level, rotated log file and/or stderr
func SetupGWLog(source string, logLevel string, logFile string, logStderr bool) {
	gwlog.SetSource(source)
	gwlog.Infof("Set log level to %s", logLevel)
	gwlog.SetLevel(gwlog.ParseLevel(logLevel))

	outputs := make([]string, 0, 2)
	if logFile != "" {
		if abs, err := filepath.Abs(logFile); err == nil {
			logFile = abs
		}
		outputs = append(outputs, gwlog.RotateScheme+"://"+filepath.ToSlash(logFile))
	}
	if logStderr || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}
	gwlog.SetOutput(outputs)
}
