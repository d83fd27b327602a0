//go:build windows
// +build windows

package main

import (
	"syscall"
)

const (
	// BinaryExtension extension used on windows
	BinaryExtension = ".exe"
	// StopSignal terminates the server, windows can not deliver SIGTERM
	StopSignal = syscall.SIGKILL
	// KillSignal quits without saving
	KillSignal = syscall.SIGKILL
)
