package monitor

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMonitor reports the resource usage of one process, by default the
// current one.
type ProcessMonitor struct {
	pid int32

	mu   sync.Mutex
	proc *process.Process
}

func NewProcessMonitor() *ProcessMonitor {
	return NewProcessMonitorForPID(int32(os.Getpid()))
}

func NewProcessMonitorForPID(pid int32) *ProcessMonitor {
	return &ProcessMonitor{pid: pid}
}

func (m *ProcessMonitor) Name() string {
	return "process"
}

func (m *ProcessMonitor) Collect() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc == nil {
		p, err := process.NewProcess(m.pid)
		if err != nil {
			return nil, err
		}
		m.proc = p
	}

	state := &ProcessState{PID: m.pid}

	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return nil, err
	}
	state.RSSBytes = memInfo.RSS

	// Thread count and CPU share are best effort on some platforms.
	if threads, err := m.proc.NumThreads(); err == nil {
		state.Threads = threads
	}
	if pct, err := m.proc.CPUPercent(); err == nil {
		state.CPUPercent = pct
	}

	return state, nil
}
