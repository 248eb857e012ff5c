package audio

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func chunk(i uint64, data ...byte) AudioChunk {
	return AudioChunk{Data: data, Index: i}
}

func TestAccumulatorKeepsArrivalOrder(t *testing.T) {
	acc := NewAccumulator(10, zerolog.Nop())

	acc.Push(chunk(0, 1, 2))
	acc.Push(chunk(1, 3))
	acc.Push(chunk(2, 4, 5, 6))

	if got := acc.Drain(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Expected concatenated chunks in order, got %v", got)
	}
	if acc.Len() != 3 {
		t.Errorf("Drain should not clear, got %d chunks", acc.Len())
	}
	if acc.Bytes() != 6 {
		t.Errorf("Expected 6 bytes, got %d", acc.Bytes())
	}
}

func TestAccumulatorEvictsToHalfCeiling(t *testing.T) {
	acc := NewAccumulator(10, zerolog.Nop())

	for i := uint64(0); i < 10; i++ {
		acc.Push(chunk(i, byte(i)))
	}
	if acc.Len() != 10 {
		t.Fatalf("Expected 10 chunks at the ceiling, got %d", acc.Len())
	}

	acc.Push(chunk(10, 10))

	chunks := acc.Chunks()
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks after eviction, got %d", len(chunks))
	}
	for i, c := range chunks {
		if want := uint64(6 + i); c.Index != want {
			t.Errorf("Position %d: expected chunk %d, got %d", i, want, c.Index)
		}
	}
	if acc.Evicted() != 6 {
		t.Errorf("Expected 6 evicted chunks, got %d", acc.Evicted())
	}
	if got := acc.Drain(); !bytes.Equal(got, []byte{6, 7, 8, 9, 10}) {
		t.Errorf("Expected newest audio retained, got %v", got)
	}
}

func TestAccumulatorNeverExceedsCeiling(t *testing.T) {
	acc := NewAccumulator(7, zerolog.Nop())

	for i := uint64(0); i < 1000; i++ {
		acc.Push(chunk(i, 0))
		if acc.Len() > acc.MaxChunks() {
			t.Fatalf("Buffer grew to %d chunks, ceiling %d", acc.Len(), acc.MaxChunks())
		}
	}

	chunks := acc.Chunks()
	if last := chunks[len(chunks)-1].Index; last != 999 {
		t.Errorf("Expected most recent chunk 999 retained, got %d", last)
	}
}

func TestAccumulatorClear(t *testing.T) {
	acc := NewAccumulator(4, zerolog.Nop())
	acc.Push(chunk(0, 1))
	acc.Push(chunk(1, 2))

	acc.Clear()

	if acc.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d chunks", acc.Len())
	}
	if len(acc.Drain()) != 0 {
		t.Error("Expected no audio after Clear")
	}
}

func TestAccumulatorClearReleasesChunkData(t *testing.T) {
	acc := NewAccumulator(8, zerolog.Nop())
	for i := uint64(0); i < 5; i++ {
		acc.Push(chunk(i, byte(i), byte(i)))
	}

	acc.Clear()

	// the backing array is reused, so its old slots must not pin audio
	for i, c := range acc.chunks[:cap(acc.chunks)] {
		if c.Data != nil {
			t.Errorf("Slot %d still references %d bytes", i, len(c.Data))
		}
	}

	acc.Push(chunk(9, 7))
	if got := acc.Drain(); len(got) != 1 || got[0] != 7 {
		t.Errorf("Expected only the new chunk after Clear, got %v", got)
	}
}

func TestAccumulatorMinimumCeiling(t *testing.T) {
	acc := NewAccumulator(0, zerolog.Nop())
	if acc.MaxChunks() != 2 {
		t.Errorf("Expected ceiling raised to 2, got %d", acc.MaxChunks())
	}
}
