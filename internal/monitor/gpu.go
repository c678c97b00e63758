package monitor

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	nvidiaProcDir = "/proc/driver/nvidia/gpus"
	nvidiaDevice  = "/dev/nvidia0"
)

// GPUMonitor detects NVIDIA accelerators from the driver's procfs entries.
// Without a driver it reports no devices.
type GPUMonitor struct {
	procDir string
	device  string
}

func NewGPUMonitor() *GPUMonitor {
	return &GPUMonitor{
		procDir: nvidiaProcDir,
		device:  nvidiaDevice,
	}
}

func (m *GPUMonitor) Name() string {
	return "gpu"
}

func (m *GPUMonitor) Collect() (any, error) {
	return m.devices(), nil
}

// Available reports whether at least one accelerator is present.
func (m *GPUMonitor) Available() bool {
	if len(m.devices()) > 0 {
		return true
	}
	_, err := os.Stat(m.device)
	return err == nil
}

func (m *GPUMonitor) devices() []GPUState {
	entries, err := os.ReadDir(m.procDir)
	if err != nil {
		return []GPUState{}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	gpus := make([]GPUState, 0, len(names))
	for i, bus := range names {
		gpus = append(gpus, GPUState{
			Index: i,
			Name:  readModelName(filepath.Join(m.procDir, bus, "information")),
		})
	}
	return gpus
}

func readModelName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value)
		}
	}
	return "unknown"
}
