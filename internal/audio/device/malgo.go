package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
)

// MalgoMicrophone captures through miniaudio via malgo
type MalgoMicrophone struct {
	config audio.CaptureConfig
	log    zerolog.Logger
}

// NewMalgoMicrophone creates a new malgo-based microphone
func NewMalgoMicrophone(config audio.CaptureConfig, log zerolog.Logger) *MalgoMicrophone {
	return &MalgoMicrophone{config: config, log: log}
}

// Name identifies the backend in errors and metrics
func (m *MalgoMicrophone) Name() string {
	return "malgo"
}

// Open initializes a malgo context and starts a capture device on it
func (m *MalgoMicrophone) Open(ctx context.Context, sampleRate, channels int) (audio.Stream, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	freeContext := func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = m.config.BufferFrames

	if m.config.DeviceName != "" {
		info, err := findCaptureDevice(malgoCtx, m.config.DeviceName)
		if err != nil {
			freeContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	stream := audio.NewDeviceStream(m.config.QueueSize, m.log)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			stream.Deliver(pInputSamples)
		},
		Stop: func() {
			if !stream.Closing() {
				stream.Fail(audio.ErrDeviceStopped)
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}

	stream.OnRelease(func() error {
		stopErr := device.Stop()
		device.Uninit()
		freeContext()
		if stopErr != nil {
			return fmt.Errorf("failed to stop device: %w", stopErr)
		}
		return nil
	})

	m.log.Debug().
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Str("device", m.config.DeviceName).
		Msg("malgo capture started")

	return stream, nil
}

// findCaptureDevice picks the first capture device whose name contains name
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	search := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), search) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matching %q", name)
}
