package main

import (
	"syscall"
	"time"

	"github.com/xiaonanln/gwactor/cmd/gwctl/process"
)

const stopWait = time.Minute * 2

func stop(signal syscall.Signal) {
	ss := detectServerStatus()
	showServerStatus(ss)
	if !ss.IsRunning() {
		showMsgAndQuit("no server is running currently")
	}

	showMsg("stop %d servers ...", ss.NumServersRunning)
	for _, proc := range ss.ServerProcs {
		stopProc(proc, signal)
	}
}

func stopProc(proc process.Process, signal syscall.Signal) {
	showMsg("stop process %s pid=%d", proc.Executable(), proc.Pid())
	err := proc.Signal(signal)
	checkErrorOrQuit(err, "stop process failed")

	deadline := time.Now().Add(stopWait)
	for proc.IsRunning() {
		if time.Now().After(deadline) {
			showMsgAndQuit("process %d is still running after %s", proc.Pid(), stopWait)
		}
		time.Sleep(time.Millisecond * 100)
	}
}
