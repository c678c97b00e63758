package monitor

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// StorageMonitor reports disk usage of the filesystems holding the given
// paths. Paths that do not exist yet are resolved to their nearest existing
// parent, so output directories can be watched before the first save.
type StorageMonitor struct {
	paths []string
}

func NewStorageMonitor(paths []string) *StorageMonitor {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return &StorageMonitor{paths: paths}
}

func (m *StorageMonitor) Name() string {
	return "storage"
}

func (m *StorageMonitor) Collect() (any, error) {
	state := make(StorageState)

	for _, path := range m.paths {
		usage, err := disk.Usage(existingParent(path))
		if err != nil {
			// Skip paths that are not accessible
			continue
		}

		state[path] = DiskState{
			UsedBytes:    usage.Used,
			FreeBytes:    usage.Free,
			TotalBytes:   usage.Total,
			UsagePercent: usage.UsedPercent,
		}
	}

	return state, nil
}

func existingParent(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
