// Package debounce collapses bursts of values into a single call.
//
// A [Debouncer] keeps the most recent value pushed to it. Every push restarts
// a quiet-period timer; when the timer fires, the callback runs once with the
// latest value. The editor uses one debouncer for text edits and another for
// panel resizes.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delivers the last pushed value to a callback after a quiet
// period. Callbacks run on the debouncer's own goroutine, one at a time.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	pending T
	has     bool

	kick    chan struct{}
	flushCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// New starts a debouncer that calls fn with the last value pushed once wait
// has elapsed without further pushes. Call [Debouncer.Stop] to release it.
func New[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	d := &Debouncer[T]{
		wait:    wait,
		fn:      fn,
		kick:    make(chan struct{}, 1),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Push records v as the pending value and restarts the quiet period.
// It never blocks.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	d.pending, d.has = v, true
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Pending reports whether a value is waiting to be delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.has
}

// Flush delivers the pending value now, if any, and waits for the callback
// to return.
func (d *Debouncer[T]) Flush() {
	done := make(chan struct{})
	select {
	case d.flushCh <- done:
		<-done
	case <-d.doneCh:
	}
}

// Stop discards any pending value and stops the debouncer. It waits for a
// running callback to finish. Stop is idempotent.
func (d *Debouncer[T]) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		var zero T
		d.pending, d.has = zero, false
		d.mu.Unlock()
		close(d.stopCh)
	})
	<-d.doneCh
}

func (d *Debouncer[T]) run() {
	defer close(d.doneCh)

	timer := time.NewTimer(d.wait)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.kick:
			timer.Reset(d.wait)
		case <-timer.C:
			d.fire()
		case done := <-d.flushCh:
			timer.Stop()
			d.fire()
			close(done)
		}
	}
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	if !d.has {
		d.mu.Unlock()
		return
	}
	v := d.pending
	var zero T
	d.pending, d.has = zero, false
	d.mu.Unlock()

	d.fn(v)
}
