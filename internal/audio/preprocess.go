package audio

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

const (
	// NoiseGateRatio is the fraction of peak amplitude below which samples
	// are zeroed.
	NoiseGateRatio = 0.02

	// TargetPeak is the peak amplitude after normalization.
	TargetPeak = 16000.0
)

// Preprocess removes DC offset, gates low-level noise and normalizes the
// peak to TargetPeak. The result has the same length as the input; the
// input is not modified.
func Preprocess(samples []int16) []int16 {
	out := make([]int16, len(samples))
	if len(samples) == 0 {
		return out
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	dc := sum / float64(len(samples))

	var peak float64
	for _, s := range samples {
		if v := math.Abs(float64(s) - dc); v > peak {
			peak = v
		}
	}

	threshold := peak * NoiseGateRatio
	gain := 1.0
	if peak > 0 {
		gain = TargetPeak / peak
	}

	for i, s := range samples {
		v := float64(s) - dc
		if math.Abs(v) < threshold {
			out[i] = 0
			continue
		}
		out[i] = clip16(math.Round(v * gain))
	}
	return out
}

// SafePreprocess runs Preprocess and falls back to the unprocessed samples
// if it panics.
func SafePreprocess(samples []int16, log zerolog.Logger) (out []int16, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocessing failed: %v", r)
			log.Warn().Err(err).Int("samples", len(samples)).Msg("using unprocessed audio")
			out = samples
		}
	}()
	return Preprocess(samples), nil
}

// TrimSilence returns the sub-slice between the first and last non-zero
// samples. A buffer that is entirely zero trims to empty.
func TrimSilence(samples []int16) []int16 {
	start := 0
	for start < len(samples) && samples[start] == 0 {
		start++
	}
	end := len(samples)
	for end > start && samples[end-1] == 0 {
		end--
	}
	return samples[start:end]
}

func clip16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
