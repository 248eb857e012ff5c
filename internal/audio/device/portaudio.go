package device

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
)

// PortAudioMicrophone captures from the default PortAudio input device. It
// is the fallback when miniaudio cannot open a device.
type PortAudioMicrophone struct {
	config audio.CaptureConfig
	log    zerolog.Logger
}

// NewPortAudioMicrophone creates a PortAudio-backed microphone
func NewPortAudioMicrophone(config audio.CaptureConfig, log zerolog.Logger) *PortAudioMicrophone {
	return &PortAudioMicrophone{config: config, log: log}
}

// Name identifies the backend in errors and metrics
func (p *PortAudioMicrophone) Name() string {
	return "portaudio"
}

// Open initializes PortAudio and starts a callback-mode input stream
func (p *PortAudioMicrophone) Open(ctx context.Context, sampleRate, channels int) (audio.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream := audio.NewDeviceStream(p.config.QueueSize, p.log)

	frames := int(p.config.BufferFrames)
	if frames <= 0 {
		frames = 480
	}

	// the callback reuses its buffer; Deliver copies
	scratch := make([]byte, frames*channels*2)
	onInput := func(in []int16) {
		need := len(in) * 2
		if cap(scratch) < need {
			scratch = make([]byte, need)
		}
		buf := scratch[:need]
		for i, s := range in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		stream.Deliver(buf)
	}

	paStream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), frames, onInput)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := paStream.Start(); err != nil {
		_ = paStream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	stream.OnRelease(func() error {
		stopErr := paStream.Stop()
		closeErr := paStream.Close()
		termErr := portaudio.Terminate()
		switch {
		case stopErr != nil:
			return fmt.Errorf("failed to stop input stream: %w", stopErr)
		case closeErr != nil:
			return fmt.Errorf("failed to close input stream: %w", closeErr)
		case termErr != nil:
			return fmt.Errorf("failed to terminate portaudio: %w", termErr)
		}
		return nil
	})

	p.log.Debug().
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Msg("portaudio capture started")

	return stream, nil
}
