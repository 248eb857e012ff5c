package earcon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/emmett/voxcode/internal/audio"
)

// resampleQuality is the beep resampler quality (1 fast .. 6 best)
const resampleQuality = 4

// FileLoader decodes <Dir>/<key>.wav or <Dir>/<key>.mp3 into mono 16-bit
// PCM at SampleRate. Keys with no file fall through to Fallback.
type FileLoader struct {
	Dir        string
	SampleRate int
	Fallback   Loader
}

func (l *FileLoader) Load(key string) ([]byte, error) {
	if l.Dir != "" {
		base := filepath.Join(l.Dir, key)

		if data, err := os.ReadFile(base + ".wav"); err == nil {
			return decodeWAV(data, l.SampleRate)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s.wav: %w", base, err)
		}

		if f, err := os.Open(base + ".mp3"); err == nil {
			return decodeMP3(f, l.SampleRate)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open %s.mp3: %w", base, err)
		}
	}

	if l.Fallback != nil {
		return l.Fallback.Load(key)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

func decodeWAV(data []byte, targetRate int) ([]byte, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	mono := downmixInts(buf, int(d.BitDepth))
	return render(&monoStreamer{samples: mono}, beep.SampleRate(buf.Format.SampleRate), targetRate)
}

func decodeMP3(rc io.ReadCloser, targetRate int) ([]byte, error) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()
	return render(streamer, format.SampleRate, targetRate)
}

// downmixInts averages interleaved channels into one normalized channel
func downmixInts(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out
}

// render resamples s to targetRate and returns mono 16-bit little-endian PCM
func render(s beep.Streamer, sourceRate beep.SampleRate, targetRate int) ([]byte, error) {
	if targetRate > 0 && int(sourceRate) != targetRate {
		s = beep.Resample(resampleQuality, sourceRate, beep.SampleRate(targetRate), s)
	}

	var samples []int16
	block := make([][2]float64, 512)
	for {
		n, ok := s.Stream(block)
		for _, frame := range block[:n] {
			v := (frame[0] + frame[1]) / 2
			samples = append(samples, int16(math.Max(-1, math.Min(1, v))*math.MaxInt16))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to stream audio: %w", err)
	}
	return audio.SamplesToBytes(samples), nil
}

// Tone describes a synthesized beep sequence
type Tone struct {
	Frequency float64
	Duration  float64 // seconds per beep
	Repeat    int
	Gap       float64 // seconds between beeps
	Volume    float64 // 0..1
}

// DefaultTones are the built-in earcons
var DefaultTones = map[string]Tone{
	KeyRecordingStart: {Frequency: 880, Duration: 0.08, Repeat: 1, Volume: 0.3},
	KeyRecordingStop:  {Frequency: 660, Duration: 0.08, Repeat: 1, Volume: 0.3},
	KeyError:          {Frequency: 330, Duration: 0.12, Repeat: 2, Gap: 0.06, Volume: 0.35},
}

// ToneLoader synthesizes earcons from Tones
type ToneLoader struct {
	SampleRate int
	Tones      map[string]Tone
}

// NewToneLoader returns a loader for DefaultTones
func NewToneLoader(sampleRate int) *ToneLoader {
	return &ToneLoader{SampleRate: sampleRate, Tones: DefaultTones}
}

func (l *ToneLoader) Load(key string) ([]byte, error) {
	tone, ok := l.Tones[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return audio.SamplesToBytes(Synthesize(tone, l.SampleRate)), nil
}

// Synthesize renders a tone as 16-bit samples with a short linear fade at
// each edge to avoid clicks
func Synthesize(t Tone, sampleRate int) []int16 {
	if t.Repeat < 1 {
		t.Repeat = 1
	}
	beepLen := int(math.Round(t.Duration * float64(sampleRate)))
	gapLen := int(math.Round(t.Gap * float64(sampleRate)))
	fade := sampleRate / 200 // 5ms
	if fade*2 > beepLen {
		fade = beepLen / 2
	}

	out := make([]int16, 0, t.Repeat*beepLen+(t.Repeat-1)*gapLen)
	for r := 0; r < t.Repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gapLen)...)
		}
		for i := 0; i < beepLen; i++ {
			env := 1.0
			if i < fade {
				env = float64(i) / float64(fade)
			} else if i >= beepLen-fade {
				env = float64(beepLen-1-i) / float64(fade)
			}
			v := math.Sin(2*math.Pi*t.Frequency*float64(i)/float64(sampleRate)) * t.Volume * env
			out = append(out, int16(v*math.MaxInt16))
		}
	}
	return out
}

// monoStreamer plays normalized mono samples through beep
type monoStreamer struct {
	samples []float64
	pos     int
}

func (m *monoStreamer) Stream(buf [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := copy2(buf, m.samples[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error { return nil }

func copy2(dst [][2]float64, src []float64) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

// PCMStreamer returns a beep streamer over little-endian 16-bit mono PCM
func PCMStreamer(pcm []byte) beep.Streamer {
	samples := audio.BytesToSamples(pcm)
	mono := make([]float64, len(samples))
	for i, s := range samples {
		mono[i] = float64(s) / 32768.0
	}
	return &monoStreamer{samples: mono}
}
