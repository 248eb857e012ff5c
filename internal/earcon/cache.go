package earcon

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/metrics"
)

// Well-known earcon keys played by the capture engine
const (
	KeyRecordingStart = "recording-start"
	KeyRecordingStop  = "recording-stop"
	KeyError          = "error"
)

// DefaultMaxBytes is the default cache budget (about 30s of 16kHz mono PCM)
const DefaultMaxBytes = 1 << 20

var (
	// ErrNotFound is returned when no loader can produce a clip for a key
	ErrNotFound = errors.New("earcon not found")

	// ErrTooLarge is returned when a single clip exceeds the whole budget
	ErrTooLarge = errors.New("earcon larger than cache budget")
)

// Loader produces little-endian 16-bit mono PCM for a key
type Loader interface {
	Load(key string) ([]byte, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(key string) ([]byte, error)

func (f LoaderFunc) Load(key string) ([]byte, error) {
	return f(key)
}

// Config holds configuration for the earcon cache
type Config struct {
	// MaxBytes bounds the summed size of cached clips
	MaxBytes int

	// Loader fills misses. Nil means Get only returns clips added with Put.
	Loader Loader

	Logger zerolog.Logger

	// Now overrides the clock, for tests
	Now func() time.Time
}

type entry struct {
	key        string
	pcm        []byte
	lastAccess time.Time
	seq        uint64
}

// Cache holds decoded earcon clips under a byte budget. When the budget is
// exceeded the least recently used third of the entries is evicted, and
// again if needed, until the total fits. Returned slices are shared and must
// not be modified.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	total    int
	maxBytes int
	seq      uint64
	loader   Loader
	now      func() time.Time
	log      zerolog.Logger
}

// NewCache creates an empty cache
func NewCache(config Config) *Cache {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Cache{
		entries:  make(map[string]*entry),
		maxBytes: config.MaxBytes,
		loader:   config.Loader,
		now:      config.Now,
		log:      config.Logger,
	}
}

// Get returns the clip for key, loading it on a miss
func (c *Cache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.touch(e)
		c.mu.Unlock()
		metrics.RecordEarconLookup(true)
		return e.pcm, nil
	}
	c.mu.Unlock()
	metrics.RecordEarconLookup(false)

	if c.loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	pcm, err := c.loader.Load(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load earcon %s: %w", key, err)
	}

	if err := c.Put(key, pcm); err != nil {
		if errors.Is(err, ErrTooLarge) {
			c.log.Warn().Str("earcon", key).Int("bytes", len(pcm)).Msg("earcon exceeds cache budget, not caching")
			return pcm, nil
		}
		return nil, err
	}
	return pcm, nil
}

// Preload loads every key that is not cached yet so later lookups stay off
// the loader. Failures are joined; keys that load are cached regardless.
func (c *Cache) Preload(keys ...string) error {
	var errs []error
	for _, key := range keys {
		if c.Contains(key) {
			continue
		}
		if _, err := c.Get(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Put stores a clip, replacing any previous clip for key
func (c *Cache) Put(key string, pcm []byte) error {
	if len(pcm) > c.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, budget %d", ErrTooLarge, key, len(pcm), c.maxBytes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.total -= len(old.pcm)
	}
	e := &entry{key: key, pcm: pcm}
	c.touch(e)
	c.entries[key] = e
	c.total += len(pcm)

	c.evictLocked()
	metrics.SetEarconBytes(c.total)
	return nil
}

// Contains reports whether key is cached, without touching it
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached clips
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the summed size of cached clips in bytes
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Clear drops every clip
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.total = 0
	metrics.SetEarconBytes(0)
}

func (c *Cache) touch(e *entry) {
	c.seq++
	e.seq = c.seq
	e.lastAccess = c.now()
}

// evictLocked drops the oldest third of entries until the budget holds
func (c *Cache) evictLocked() {
	for c.total > c.maxBytes && len(c.entries) > 0 {
		ordered := make([]*entry, 0, len(c.entries))
		for _, e := range c.entries {
			ordered = append(ordered, e)
		}
		sort.Slice(ordered, func(i, j int) bool {
			if !ordered[i].lastAccess.Equal(ordered[j].lastAccess) {
				return ordered[i].lastAccess.Before(ordered[j].lastAccess)
			}
			return ordered[i].seq < ordered[j].seq
		})

		n := (len(ordered) + 2) / 3
		freed := 0
		for _, e := range ordered[:n] {
			delete(c.entries, e.key)
			c.total -= len(e.pcm)
			freed += len(e.pcm)
		}

		metrics.RecordEarconEvictions(n)
		c.log.Debug().
			Int("evicted", n).
			Int("freed_bytes", freed).
			Int("total_bytes", c.total).
			Msg("earcon cache over budget")
	}
}
