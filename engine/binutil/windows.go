//go:build windows
// +build windows

package binutil

import "github.com/xiaonanln/gwactor/engine/gwlog"

// Releaser releases the daemon context
type Releaser interface {
	Release() error
}

type nopRelease int

func (nopRelease) Release() error {
	return nil
}

// Daemonize is not supported on windows, -d is ignored
func Daemonize() Releaser {
	gwlog.Warnf("can not run in daemon mode in windows, -d ignored")
	return nopRelease(0)
}
