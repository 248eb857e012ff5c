package audio

import (
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the size of the canonical PCM WAV header
const WAVHeaderSize = 44

const (
	wavChannels      = 1
	wavBitsPerSample = 16
	wavBlockAlign    = wavChannels * wavBitsPerSample / 8
)

// WAVHeader holds the fields of a canonical 44-byte PCM WAV header
type WAVHeader struct {
	ChunkSize     uint32 // 36 + data size
	Subchunk1Size uint32 // 16 for PCM
	AudioFormat   uint16 // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2Size uint32 // data size in bytes
}

// EncodeWAV wraps mono 16-bit samples in a canonical WAV container. Every
// field is written little-endian explicitly, so output does not depend on
// host byte order. An empty sample slice yields a header-only file.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)
	out := make([]byte, WAVHeaderSize+int(dataSize))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], wavChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate)*wavChannels*2)
	binary.LittleEndian.PutUint16(out[32:34], wavBlockAlign)
	binary.LittleEndian.PutUint16(out[34:36], wavBitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[WAVHeaderSize+i*2:], uint16(s))
	}
	return out
}

// ParseWAVHeader validates and decodes a canonical WAV header
func ParseWAVHeader(data []byte) (*WAVHeader, error) {
	if len(data) < WAVHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	h := &WAVHeader{
		ChunkSize:     binary.LittleEndian.Uint32(data[4:8]),
		Subchunk1Size: binary.LittleEndian.Uint32(data[16:20]),
		AudioFormat:   binary.LittleEndian.Uint16(data[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(data[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(data[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(data[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(data[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(data[34:36]),
		Subchunk2Size: binary.LittleEndian.Uint32(data[40:44]),
	}

	if h.AudioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", h.AudioFormat)
	}
	if h.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", h.BitsPerSample)
	}
	return h, nil
}

// WAVSamples returns the PCM samples of a canonical mono WAV payload
func WAVSamples(data []byte) ([]int16, int, error) {
	h, err := ParseWAVHeader(data)
	if err != nil {
		return nil, 0, err
	}
	if h.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", h.NumChannels)
	}
	end := WAVHeaderSize + int(h.Subchunk2Size)
	if end > len(data) {
		end = len(data)
	}
	return BytesToSamples(data[WAVHeaderSize:end]), int(h.SampleRate), nil
}
