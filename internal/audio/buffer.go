package audio

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/metrics"
)

// Default chunk ceilings. Streaming flushes every couple of seconds so it
// needs less headroom than a held push-to-talk key.
const (
	DefaultPushToTalkMaxChunks = 500
	DefaultStreamingMaxChunks  = 250
)

// Accumulator collects audio chunks in arrival order under a chunk-count
// ceiling. When the ceiling is exceeded the oldest chunks are dropped so
// that only the most recent half of the ceiling remains. Dropping audio is
// the price of bounded memory on a runaway session.
type Accumulator struct {
	mu        sync.Mutex
	chunks    []AudioChunk
	maxChunks int
	evicted   int
	log       zerolog.Logger
}

// NewAccumulator creates an accumulator holding at most maxChunks chunks
func NewAccumulator(maxChunks int, log zerolog.Logger) *Accumulator {
	if maxChunks < 2 {
		maxChunks = 2
	}
	return &Accumulator{
		chunks:    make([]AudioChunk, 0, maxChunks),
		maxChunks: maxChunks,
		log:       log,
	}
}

// Push appends a chunk, evicting the oldest chunks if the ceiling is exceeded
func (a *Accumulator) Push(chunk AudioChunk) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.chunks = append(a.chunks, chunk)
	if len(a.chunks) <= a.maxChunks {
		return
	}

	keep := a.maxChunks / 2
	drop := len(a.chunks) - keep

	retained := make([]AudioChunk, keep, a.maxChunks)
	copy(retained, a.chunks[drop:])
	a.chunks = retained
	a.evicted += drop

	metrics.RecordEviction(drop)
	a.log.Warn().
		Int("dropped", drop).
		Int("retained", keep).
		Int("ceiling", a.maxChunks).
		Msg("audio buffer ceiling exceeded, dropped oldest chunks")
}

// Drain returns all buffered audio concatenated in arrival order. The buffer
// is left intact; call Clear once the audio has been handled.
func (a *Accumulator) Drain() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := 0
	for _, c := range a.chunks {
		size += len(c.Data)
	}

	out := make([]byte, 0, size)
	for _, c := range a.chunks {
		out = append(out, c.Data...)
	}
	return out
}

// Clear drops all buffered chunks and releases their audio
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.chunks)
	a.chunks = a.chunks[:0]
}

// Len returns the number of buffered chunks
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// Bytes returns the number of buffered bytes
func (a *Accumulator) Bytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.chunks {
		n += len(c.Data)
	}
	return n
}

// Chunks returns a copy of the buffered chunks in arrival order
func (a *Accumulator) Chunks() []AudioChunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AudioChunk, len(a.chunks))
	copy(out, a.chunks)
	return out
}

// Evicted returns the total number of chunks dropped by the ceiling
func (a *Accumulator) Evicted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evicted
}

// MaxChunks returns the configured ceiling
func (a *Accumulator) MaxChunks() int {
	return a.maxChunks
}
