package monitor

import "fmt"

const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// SelectDevice resolves a configured device name. auto picks cuda when an
// accelerator is available; an explicit cuda without one is an error.
func SelectDevice(pref string, accelerator bool) (string, error) {
	switch pref {
	case DeviceAuto, "":
		if accelerator {
			return DeviceCUDA, nil
		}
		return DeviceCPU, nil
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA:
		if !accelerator {
			return "", fmt.Errorf("device cuda requested but no accelerator was found")
		}
		return DeviceCUDA, nil
	default:
		return "", fmt.Errorf("unknown device %q", pref)
	}
}
