package monitor

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// CPUMonitor reports host CPU usage since the previous call. The first call
// after process start may read zero.
type CPUMonitor struct{}

func NewCPUMonitor() *CPUMonitor {
	return &CPUMonitor{}
}

func (m *CPUMonitor) Name() string {
	return "cpu"
}

func (m *CPUMonitor) Collect() (any, error) {
	cores, err := cpu.Percent(0, true)
	if err != nil {
		return nil, err
	}

	var sum float64
	for _, c := range cores {
		sum += c
	}
	var overall float64
	if len(cores) > 0 {
		overall = sum / float64(len(cores))
	}

	return &CPUState{
		UsagePercent: overall,
		Cores:        cores,
	}, nil
}

// MemoryMonitor reports host virtual memory usage.
type MemoryMonitor struct{}

func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{}
}

func (m *MemoryMonitor) Name() string {
	return "memory"
}

func (m *MemoryMonitor) Collect() (any, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	return &MemoryState{
		UsedBytes:    v.Used,
		TotalBytes:   v.Total,
		UsagePercent: v.UsedPercent,
	}, nil
}
