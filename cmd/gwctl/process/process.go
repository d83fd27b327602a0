// Package process lists and signals local processes.
package process

import (
	"syscall"

	psutil_process "github.com/shirou/gopsutil/process"
)

// Process is a running process
type Process interface {
	Pid() int32
	Executable() string
	Path() (string, error)
	CmdlineSlice() ([]string, error)
	Signal(sig syscall.Signal) error
	IsRunning() bool
}

type process struct {
	*psutil_process.Process
}

func (p process) Pid() int32 {
	return p.Process.Pid
}

func (p process) Executable() string {
	name, _ := p.Process.Name()
	return name
}

func (p process) Path() (string, error) {
	return p.Process.Exe()
}

func (p process) IsRunning() bool {
	ok, err := psutil_process.PidExists(p.Process.Pid)
	return err == nil && ok
}

// Processes returns all processes of the machine
func Processes() ([]Process, error) {
	ps, err := psutil_process.Processes()
	if err != nil {
		return nil, err
	}

	procs := make([]Process, 0, len(ps))
	for _, p := range ps {
		procs = append(procs, process{p})
	}
	return procs, nil
}

// Self returns the current process
func Self() (Process, error) {
	p, err := psutil_process.NewProcess(int32(syscall.Getpid()))
	if err != nil {
		return nil, err
	}
	return process{p}, nil
}
