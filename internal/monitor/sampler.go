package monitor

import (
	"log/slog"
	"time"
)

// Sampler collects all monitors on demand.
type Sampler struct {
	monitors []Monitor
	logger   *slog.Logger
}

func NewSampler(monitors []Monitor, logger *slog.Logger) *Sampler {
	return &Sampler{
		monitors: monitors,
		logger:   logger,
	}
}

// DefaultMonitors returns the monitors used during training. storagePaths
// are the output locations whose free space is reported.
func DefaultMonitors(storagePaths []string) []Monitor {
	return []Monitor{
		NewCPUMonitor(),
		NewMemoryMonitor(),
		NewProcessMonitor(),
		NewStorageMonitor(storagePaths),
		NewGPUMonitor(),
	}
}

// Sample collects every monitor once. Failing monitors are logged and leave
// their section zeroed.
func (s *Sampler) Sample() *SystemState {
	state := &SystemState{
		Timestamp: time.Now(),
		GPUs:      []GPUState{},
		Storage:   make(StorageState),
	}

	for _, m := range s.monitors {
		data, err := m.Collect()
		if err != nil {
			s.logger.Warn("monitor collection failed",
				"monitor", m.Name(),
				"error", err,
			)
			continue
		}

		switch m.Name() {
		case "cpu":
			if cpuState, ok := data.(*CPUState); ok {
				state.CPU = *cpuState
			}
		case "memory":
			if memState, ok := data.(*MemoryState); ok {
				state.Memory = *memState
			}
		case "storage":
			if storageState, ok := data.(StorageState); ok {
				state.Storage = storageState
			}
		case "process":
			if procState, ok := data.(*ProcessState); ok {
				state.Process = *procState
			}
		case "gpu":
			if gpuStates, ok := data.([]GPUState); ok {
				state.GPUs = gpuStates
			}
		}
	}

	return state
}
