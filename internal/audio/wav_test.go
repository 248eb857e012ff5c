package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAVHeaderIsByteExact(t *testing.T) {
	wav := EncodeWAV([]int16{1, -2}, 16000)

	expected := []byte{
		'R', 'I', 'F', 'F',
		0x28, 0x00, 0x00, 0x00, // 36 + 4
		'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ',
		0x10, 0x00, 0x00, 0x00, // 16
		0x01, 0x00, // PCM
		0x01, 0x00, // mono
		0x80, 0x3E, 0x00, 0x00, // 16000
		0x00, 0x7D, 0x00, 0x00, // 32000
		0x02, 0x00, // block align
		0x10, 0x00, // 16 bits
		'd', 'a', 't', 'a',
		0x04, 0x00, 0x00, 0x00,
		0x01, 0x00, // 1
		0xFE, 0xFF, // -2
	}

	if !bytes.Equal(wav, expected) {
		t.Fatalf("WAV bytes mismatch\n got: % x\nwant: % x", wav, expected)
	}
}

func TestEncodeWAVIsDeterministic(t *testing.T) {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i*37 - 20000)
	}

	first := EncodeWAV(samples, 16000)
	second := EncodeWAV(samples, 16000)

	if !bytes.Equal(first, second) {
		t.Error("Expected identical output for identical input")
	}
	if len(first) != WAVHeaderSize+len(samples)*2 {
		t.Errorf("Expected length %d, got %d", WAVHeaderSize+len(samples)*2, len(first))
	}
}

func TestEncodeWAVEmptyIsHeaderOnly(t *testing.T) {
	wav := EncodeWAV(nil, 16000)
	if len(wav) != WAVHeaderSize {
		t.Fatalf("Expected %d bytes, got %d", WAVHeaderSize, len(wav))
	}

	h, err := ParseWAVHeader(wav)
	if err != nil {
		t.Fatalf("ParseWAVHeader failed: %v", err)
	}
	if h.ChunkSize != 36 {
		t.Errorf("Expected chunk size 36, got %d", h.ChunkSize)
	}
	if h.Subchunk2Size != 0 {
		t.Errorf("Expected data size 0, got %d", h.Subchunk2Size)
	}
}

func TestWAVSamplesRoundTrip(t *testing.T) {
	original := []int16{100, -200, 300, -400, 32767, -32768}

	samples, rate, err := WAVSamples(EncodeWAV(original, 8000))
	if err != nil {
		t.Fatalf("WAVSamples failed: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", rate)
	}
	if len(samples) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(samples))
	}
	for i := range original {
		if samples[i] != original[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, original[i], samples[i])
		}
	}
}

func TestParseWAVHeaderRejectsGarbage(t *testing.T) {
	if _, err := ParseWAVHeader([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for short data")
	}

	fake := make([]byte, 50)
	copy(fake[0:4], "FAKE")
	if _, err := ParseWAVHeader(fake); err == nil {
		t.Error("Expected error for missing RIFF header")
	}
}
