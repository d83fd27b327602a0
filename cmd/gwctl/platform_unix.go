//go:build !windows
// +build !windows

package main

import (
	"syscall"
)

const (
	// BinaryExtension extension used on unix
	BinaryExtension = ""
	// StopSignal lets the server save and quit
	StopSignal = syscall.SIGTERM
	// KillSignal quits without saving
	KillSignal = syscall.SIGKILL
)
