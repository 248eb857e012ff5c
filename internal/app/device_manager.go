package app

import (
	"fmt"
	"io"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/audio/device"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	out io.Writer
}

// NewDeviceManager creates a new DeviceManager instance
func NewDeviceManager(out io.Writer) *DeviceManager {
	return &DeviceManager{out: out}
}

// ListDevices prints all available capture devices
func (dm *DeviceManager) ListDevices() error {
	devices, err := device.ListDevices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		return fmt.Errorf("no audio capture devices found")
	}

	fmt.Fprintf(dm.out, "Found %d capture device(s):\n\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(dm.out, "  %s\n", d)
	}

	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "To use a specific device, run:")
	fmt.Fprintf(dm.out, "  voxcode --device %q\n", devices[0].Name)
	return nil
}

// CheckDevice verifies that name matches a capture device before recording
func (dm *DeviceManager) CheckDevice(name string) (*audio.DeviceInfo, error) {
	devices, err := device.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return audio.SelectDevice(devices, name)
}
