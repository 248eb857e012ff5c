// Package playback plays earcons on the default output device.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/earcon"
)

// SpeakerPlayer plays earcons on the default output device. Playback is
// asynchronous; Play returns once the clip is queued.
type SpeakerPlayer struct {
	sampleRate beep.SampleRate
	log        zerolog.Logger

	once    sync.Once
	opened  bool
	initErr error
}

// NewSpeakerPlayer creates a player for mono PCM at sampleRate. The output
// device is opened on first use.
func NewSpeakerPlayer(sampleRate int, log zerolog.Logger) *SpeakerPlayer {
	return &SpeakerPlayer{sampleRate: beep.SampleRate(sampleRate), log: log}
}

func (p *SpeakerPlayer) init() error {
	p.once.Do(func() {
		if err := speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10)); err != nil {
			p.initErr = fmt.Errorf("failed to open speaker: %w", err)
			return
		}
		p.opened = true
	})
	return p.initErr
}

// Play queues little-endian 16-bit mono PCM for playback
func (p *SpeakerPlayer) Play(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if err := p.init(); err != nil {
		p.log.Warn().Err(err).Msg("earcon playback disabled")
		return
	}
	speaker.Play(earcon.PCMStreamer(pcm))
}

// Close releases the output device if it was opened
func (p *SpeakerPlayer) Close() {
	p.once.Do(func() {
		p.initErr = errors.New("speaker closed")
	})
	if p.opened {
		speaker.Close()
	}
}
