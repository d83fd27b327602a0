//go:build !windows
// +build !windows

package binutil

import (
	"os"

	"github.com/sevlyar/go-daemon"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// Releaser releases the daemon context
type Releaser interface {
	Release() error
}

// Daemonize restarts the process in background. The parent process exits.
func Daemonize() Releaser {
	context := new(daemon.Context)
	child, err := context.Reborn()

	if err != nil {
		gwlog.Panicf("daemonize failed: %v", err)
	}

	if child != nil {
		gwlog.Infof("run in daemon mode")
		os.Exit(0)
		return nil
	}
	return context
}
