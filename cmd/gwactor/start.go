package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/xiaonanln/gwactor/engine/gwlog"
)

var (
	args struct {
		configFile      string
		logLevel        string
		runInDaemonMode bool
	}
	signalChan = make(chan os.Signal, 1)
)

func parseArgs() {
	flag.StringVar(&args.configFile, "configfile", "", "set config file path")
	flag.StringVar(&args.logLevel, "log", "", "set log level, will override log level in config")
	flag.BoolVar(&args.runInDaemonMode, "d", false, "run in daemon mode")
	flag.Parse()
}

// waitSignals blocks until SIGINT or SIGTERM
func waitSignals() {
	gwlog.Infof("Setup signals ...")
	signal.Ignore(syscall.SIGPIPE, syscall.SIGHUP)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	for {
		sig := <-signalChan
		if sig == syscall.SIGINT || sig == syscall.SIGTERM {
			return
		}
		gwlog.Errorf("unexpected signal: %s", sig)
	}
}
