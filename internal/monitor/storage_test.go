package monitor

import (
	"path/filepath"
	"testing"
)

func TestStorageMonitor_Name(t *testing.T) {
	m := NewStorageMonitor(nil)
	if m.Name() != "storage" {
		t.Errorf("expected name 'storage', got %s", m.Name())
	}
}

func TestStorageMonitor_DefaultPath(t *testing.T) {
	m := NewStorageMonitor(nil)
	if len(m.paths) != 1 || m.paths[0] != "." {
		t.Errorf("expected default path ['.'], got %v", m.paths)
	}
}

func TestStorageMonitor_NotYetCreatedPath(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "Weights", "nested")

	m := NewStorageMonitor([]string{weights})
	data, err := m.Collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	state, ok := data.(StorageState)
	if !ok {
		t.Fatalf("expected StorageState, got %T", data)
	}

	disk, ok := state[weights]
	if !ok {
		t.Fatalf("expected entry for %s, got %v", weights, state)
	}
	if disk.TotalBytes == 0 {
		t.Error("expected non-zero total bytes")
	}
}

func TestExistingParent(t *testing.T) {
	dir := t.TempDir()

	if got := existingParent(filepath.Join(dir, "a", "b")); got != dir {
		t.Errorf("expected %s, got %s", dir, got)
	}
	if got := existingParent(dir); got != dir {
		t.Errorf("expected %s, got %s", dir, got)
	}
}
