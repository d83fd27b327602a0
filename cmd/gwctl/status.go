package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xiaonanln/gwactor/cmd/gwctl/process"
)

const serverBinary = "gwactor" + BinaryExtension

// ServerStatus represents the gwactor servers running on this machine
type ServerStatus struct {
	NumServersRunning int
	ServerProcs       []process.Process
}

// IsRunning returns if a server is running
func (ss *ServerStatus) IsRunning() bool {
	return ss.NumServersRunning > 0
}

func detectServerStatus() *ServerStatus {
	ss := &ServerStatus{}
	procs, err := process.Processes()
	checkErrorOrQuit(err, "list processes failed")
	for _, proc := range procs {
		path, err := proc.Path()
		if err != nil {
			cmdline, err := proc.CmdlineSlice()
			if err != nil || len(cmdline) == 0 {
				continue
			}
			path = cmdline[0]
		}
		if filepath.Base(path) != serverBinary {
			continue
		}
		ss.NumServersRunning++
		ss.ServerProcs = append(ss.ServerProcs, proc)
	}
	return ss
}

func status() {
	ss := detectServerStatus()
	showServerStatus(ss)
	if ss.IsRunning() {
		adminCommand("status", nil)
	}
}

func showServerStatus(ss *ServerStatus) {
	showMsg("%d servers running", ss.NumServersRunning)
	for _, proc := range ss.ServerProcs {
		cmdlineSlice, err := proc.CmdlineSlice()
		var cmdline string
		if err == nil {
			cmdline = strings.Join(cmdlineSlice, " ")
		} else {
			cmdline = fmt.Sprintf("get cmdline failed: %v", err)
		}

		showMsg("\t%-10d%-16s%s", proc.Pid(), proc.Executable(), cmdline)
	}
}
