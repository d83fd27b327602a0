package opmon

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

var (
	operationAllocPool = sync.Pool{
		New: func() interface{} {
			return &Operation{}
		},
	}

	monitor = newMonitor()
)

func init() {
	if consts.OPMON_DUMP_INTERVAL > 0 {
		go func() {
			for {
				time.Sleep(consts.OPMON_DUMP_INTERVAL)
				Dump()
			}
		}()
	}
}

type _OpInfo struct {
	count         uint64
	totalDuration time.Duration
	maxDuration   time.Duration
}

// OpStat is a snapshot of one monitored operation
type OpStat struct {
	Name  string        `json:"name"`
	Count uint64        `json:"count"`
	Avg   time.Duration `json:"avg"`
	Max   time.Duration `json:"max"`
}

type _Monitor struct {
	sync.Mutex
	opInfos map[string]*_OpInfo
}

func newMonitor() *_Monitor {
	m := &_Monitor{
		opInfos: map[string]*_OpInfo{},
	}
	return m
}

func (monitor *_Monitor) record(opname string, duration time.Duration) {
	monitor.Lock()
	info := monitor.opInfos[opname]
	if info == nil {
		info = &_OpInfo{}
		monitor.opInfos[opname] = info
	}
	info.count += 1
	info.totalDuration += duration
	if duration > info.maxDuration {
		info.maxDuration = duration
	}
	monitor.Unlock()
}

func (monitor *_Monitor) snapshot(reset bool) []OpStat {
	monitor.Lock()
	opInfos := monitor.opInfos
	if reset {
		monitor.opInfos = map[string]*_OpInfo{}
	}
	stats := make([]OpStat, 0, len(opInfos))
	for name, info := range opInfos {
		stats = append(stats, OpStat{
			Name:  name,
			Count: info.count,
			Avg:   info.totalDuration / time.Duration(info.count),
			Max:   info.maxDuration,
		})
	}
	monitor.Unlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// Snapshot returns the statistics collected so far without clearing them
func Snapshot() []OpStat {
	return monitor.snapshot(false)
}

// Dump prints the statistics to stderr and clears them
func Dump() {
	stats := monitor.snapshot(true)
	fmt.Fprint(os.Stderr, "=====================================================================================\n")
	for _, st := range stats {
		fmt.Fprintf(os.Stderr, "%-30sx%-10d AVG %-10s MAX %-10s\n", st.Name, st.Count, st.Avg, st.Max)
	}
}

// Operation is the type of operation to be monitored
type Operation struct {
	name      string
	startTime time.Time
}

// StartOperation creates a new operation
func StartOperation(operationName string) *Operation {
	op := operationAllocPool.Get().(*Operation)
	op.name = operationName
	op.startTime = time.Now()
	return op
}

// Finish finishes the operation and records the duration of operation
func (op *Operation) Finish(warnThreshold time.Duration) {
	takeTime := time.Since(op.startTime)
	monitor.record(op.name, takeTime)
	if takeTime >= warnThreshold {
		gwlog.Warnf("opmon: operation %s takes %s > %s", op.name, takeTime, warnThreshold)
	}
	operationAllocPool.Put(op)
}
