package audio

import (
	"fmt"
	"strings"
)

// DeviceInfo describes a capture device
type DeviceInfo struct {
	Index     int    // Position in the backend's enumeration
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the system default input
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	marker := ""
	if d.IsDefault {
		marker = " [DEFAULT]"
	}
	return fmt.Sprintf("%d: %s%s", d.Index, d.Name, marker)
}

// SelectDevice returns the device matching name (case-insensitive partial
// match), or the default device when name is empty.
func SelectDevice(devices []DeviceInfo, name string) (*DeviceInfo, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if name == "" {
		for i := range devices {
			if devices[i].IsDefault {
				return &devices[i], nil
			}
		}
		return &devices[0], nil
	}

	search := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), search) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no device found matching name: %s", name)
}
