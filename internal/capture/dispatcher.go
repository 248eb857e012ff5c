package capture

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// dispatcher runs listener callbacks on one goroutine in FIFO order. The
// queue is unbounded so posting never blocks the engine.
type dispatcher struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	log     zerolog.Logger
}

func newDispatcher(log zerolog.Logger) *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
	go d.run()
	return d
}

// post queues fn. Posts after close are dropped.
func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
	d.signal()
}

// close stops the dispatcher once everything already queued has run
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

// wait blocks until every queued callback has run or timeout elapses. It
// reports whether the queue drained.
func (d *dispatcher) wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.done:
		return true
	case <-timer.C:
		return false
	}
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			d.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn()
}
