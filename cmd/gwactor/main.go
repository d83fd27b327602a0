// gwactor runs one game server: the actor runtime, the client listeners and the admin API.
package main

import (
	"context"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/xiaonanln/gwactor/engine/binutil"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/server"
	"github.com/xiaonanln/gwactor/logic"
)

func main() {
	rand.Seed(time.Now().UnixNano())
	parseArgs()

	if args.runInDaemonMode {
		daemoncontext := binutil.Daemonize()
		defer daemoncontext.Release()
	}

	if args.configFile != "" {
		config.SetConfigFile(args.configFile)
	}
	cfg := config.Get()
	serverConfig := &cfg.Server
	if serverConfig.GoMaxProcs > 0 {
		gwlog.Infof("SET GOMAXPROCS = %d", serverConfig.GoMaxProcs)
		runtime.GOMAXPROCS(serverConfig.GoMaxProcs)
	}
	logLevel := args.logLevel
	if logLevel == "" {
		logLevel = serverConfig.LogLevel
	}
	binutil.SetupGWLog("gwactor", logLevel, serverConfig.LogFile, serverConfig.LogStderr)
	gwlog.Infof("Read config: %s", config.DumpPretty(cfg))

	srv, err := server.New(cfg)
	if err != nil {
		gwlog.Fatalf("create server failed: %v", err)
	}
	if err = srv.Start(context.Background(), logic.New); err != nil {
		gwlog.Fatalf("start server failed: %v", err)
	}
	gwlog.Infof("Server %d started.", serverConfig.ServerID)

	waitSignals()

	gwlog.Infof("Terminating server %d ...", serverConfig.ServerID)
	ctx, cancel := context.WithTimeout(context.Background(), consts.SHUTDOWN_WAIT*2)
	defer cancel()
	if err = srv.Stop(ctx); err != nil {
		gwlog.Errorf("stop server failed: %v", err)
		gwlog.Sync()
		os.Exit(1)
	}
	gwlog.Infof("Server %d terminated gracefully.", serverConfig.ServerID)
	gwlog.Sync()
}
