// Package monitor samples host resources during training and detects
// whether an accelerator is present.
package monitor

import "time"

type Monitor interface {
	Name() string
	Collect() (any, error)
}

type CPUState struct {
	UsagePercent float64   `json:"usage_percent"`
	Cores        []float64 `json:"cores"`
}

type MemoryState struct {
	UsedBytes    uint64  `json:"used_bytes"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

type GPUState struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type DiskState struct {
	UsedBytes    uint64  `json:"used_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

type StorageState map[string]DiskState

// ProcessState describes the training process itself.
type ProcessState struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
	CPUPercent float64 `json:"cpu_percent"`
}

type SystemState struct {
	CPU       CPUState     `json:"cpu"`
	Memory    MemoryState  `json:"memory"`
	Process   ProcessState `json:"process"`
	GPUs      []GPUState   `json:"gpus"`
	Storage   StorageState `json:"storage"`
	Timestamp time.Time    `json:"timestamp"`
}

// LogAttrs flattens the state into slog key/value pairs.
func (s *SystemState) LogAttrs() []any {
	attrs := []any{
		"cpu_percent", s.CPU.UsagePercent,
		"memory_percent", s.Memory.UsagePercent,
		"rss_bytes", s.Process.RSSBytes,
		"threads", s.Process.Threads,
	}
	for path, d := range s.Storage {
		attrs = append(attrs, "disk_free_bytes:"+path, d.FreeBytes)
	}
	return attrs
}
