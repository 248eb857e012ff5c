package audio

import "testing"

func TestSelectDevice(t *testing.T) {
	devices := []DeviceInfo{
		{Index: 0, Name: "HDA Intel PCH: ALC3246 Analog"},
		{Index: 1, Name: "Blue Yeti USB Microphone", IsDefault: true},
		{Index: 2, Name: "Monitor of Built-in Audio"},
	}

	tests := []struct {
		name    string
		search  string
		want    int
		wantErr bool
	}{
		{"default", "", 1, false},
		{"partial match", "yeti", 1, false},
		{"case insensitive", "MONITOR", 2, false},
		{"no match", "webcam", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectDevice(devices, tt.search)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Index != tt.want {
				t.Errorf("Expected device %d, got %d", tt.want, got.Index)
			}
		})
	}
}

func TestSelectDeviceWithoutDefault(t *testing.T) {
	got, err := SelectDevice([]DeviceInfo{{Index: 4, Name: "only"}}, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Index != 4 {
		t.Errorf("Expected first device, got %d", got.Index)
	}

	if _, err := SelectDevice(nil, ""); err == nil {
		t.Error("Expected error for empty device list")
	}
}

func TestDeviceInfoString(t *testing.T) {
	d := DeviceInfo{Index: 2, Name: "USB Mic", IsDefault: true}
	if d.String() != "2: USB Mic [DEFAULT]" {
		t.Errorf("Unexpected string %q", d.String())
	}
}
