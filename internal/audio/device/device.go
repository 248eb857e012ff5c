package device

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/audio"
)

// Backend names accepted by NewChain
const (
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
)

// NewChain builds a fallback chain from backend names in order. An empty
// list means malgo then PortAudio.
func NewChain(backends []string, config audio.CaptureConfig, log zerolog.Logger) (audio.Chain, error) {
	if len(backends) == 0 {
		backends = []string{BackendMalgo, BackendPortAudio}
	}

	chain := make(audio.Chain, 0, len(backends))
	for _, name := range backends {
		switch strings.ToLower(name) {
		case BackendMalgo:
			chain = append(chain, NewMalgoMicrophone(config, log.With().Str("backend", BackendMalgo).Logger()))
		case BackendPortAudio:
			chain = append(chain, NewPortAudioMicrophone(config, log.With().Str("backend", BackendPortAudio).Logger()))
		default:
			return nil, fmt.Errorf("unknown capture backend %q", name)
		}
	}
	return chain, nil
}

// ListDevices enumerates capture devices through malgo
func ListDevices() ([]audio.DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]audio.DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, audio.DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}
	return devices, nil
}
