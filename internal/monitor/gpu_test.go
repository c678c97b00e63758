package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func fakeGPUMonitor(t *testing.T) (*GPUMonitor, string) {
	t.Helper()
	dir := t.TempDir()
	return &GPUMonitor{
		procDir: filepath.Join(dir, "gpus"),
		device:  filepath.Join(dir, "nvidia0"),
	}, dir
}

func TestGPUMonitor_Name(t *testing.T) {
	m := NewGPUMonitor()
	if m.Name() != "gpu" {
		t.Errorf("expected name 'gpu', got %s", m.Name())
	}
}

func TestGPUMonitor_NoDriver(t *testing.T) {
	m, _ := fakeGPUMonitor(t)

	data, err := m.Collect()
	if err != nil {
		t.Fatalf("collect should not fail: %v", err)
	}

	states, ok := data.([]GPUState)
	if !ok {
		t.Fatalf("expected []GPUState, got %T", data)
	}
	if len(states) != 0 {
		t.Errorf("expected no devices, got %d", len(states))
	}
	if m.Available() {
		t.Error("expected no accelerator")
	}
}

func TestGPUMonitor_ProcEntries(t *testing.T) {
	m, _ := fakeGPUMonitor(t)

	for bus, model := range map[string]string{
		"0000:02:00.0": "NVIDIA A100-SXM4-40GB",
		"0000:01:00.0": "NVIDIA GeForce RTX 3090",
	} {
		dir := filepath.Join(m.procDir, bus)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		info := "Model: \t\t " + model + "\nIRQ:   42\n"
		if err := os.WriteFile(filepath.Join(dir, "information"), []byte(info), 0644); err != nil {
			t.Fatal(err)
		}
	}

	data, _ := m.Collect()
	states := data.([]GPUState)

	if len(states) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(states))
	}
	// Ordered by bus id.
	if states[0].Name != "NVIDIA GeForce RTX 3090" || states[1].Name != "NVIDIA A100-SXM4-40GB" {
		t.Errorf("unexpected devices: %+v", states)
	}
	if !m.Available() {
		t.Error("expected accelerator to be available")
	}
}

func TestGPUMonitor_DeviceNodeOnly(t *testing.T) {
	m, _ := fakeGPUMonitor(t)
	if err := os.WriteFile(m.device, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if !m.Available() {
		t.Error("expected device node to count as an accelerator")
	}
}
