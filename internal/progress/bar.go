// Package progress is the loading indicator driven by page-loading
// signals. It follows the NProgress model: start shows a small value,
// the bar trickles toward (but never reaches) completion, done finishes it.
package progress

import (
	"sync"
	"time"
)

const (
	DefaultMinimum      = 0.08
	DefaultTrickleSpeed = 200 * time.Millisecond

	ceiling = 0.994
)

type Snapshot struct {
	Active bool
	Value  float64
}

type Options struct {
	Minimum      float64
	TrickleSpeed time.Duration
	// DisableTrickle keeps the value fixed between Start and Done.
	DisableTrickle bool
}

type Bar struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	opts      Options
	active    bool
	value     float64
	stopTrick chan struct{}
	observers map[uint64]func(Snapshot)
	nextObsID uint64
	starts    uint64
	dones     uint64
}

func New(opts Options) *Bar {
	if opts.Minimum <= 0 || opts.Minimum >= 1 {
		opts.Minimum = DefaultMinimum
	}
	if opts.TrickleSpeed <= 0 {
		opts.TrickleSpeed = DefaultTrickleSpeed
	}
	return &Bar{opts: opts, observers: make(map[uint64]func(Snapshot))}
}

// Start shows the bar at the minimum value. It is a no-op while the bar is
// already running.
func (b *Bar) Start() {
	b.mu.Lock()
	b.starts++
	if b.active {
		b.mu.Unlock()
		return
	}
	b.active = true
	b.value = b.opts.Minimum
	if !b.opts.DisableTrickle {
		stop := make(chan struct{})
		b.stopTrick = stop
		go b.trickle(stop)
	}
	b.unlockAndNotify()
}

// Inc nudges a running bar forward by an amount that shrinks as the bar
// fills. A stopped bar is started instead.
func (b *Bar) Inc() {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		b.Start()
		return
	}
	b.advanceLocked()
}

// advanceLocked is called with b.mu held and releases it.
func (b *Bar) advanceLocked() {
	next := b.value + incrementFor(b.value)
	if next > ceiling {
		next = ceiling
	}
	if next == b.value {
		b.mu.Unlock()
		return
	}
	b.value = next
	b.unlockAndNotify()
}

// Done completes and hides the bar. Calling it on a bar that was never
// started does nothing.
func (b *Bar) Done() {
	b.mu.Lock()
	b.dones++
	if !b.active {
		b.mu.Unlock()
		return
	}
	if b.stopTrick != nil {
		close(b.stopTrick)
		b.stopTrick = nil
	}
	b.active = false
	b.value = 1
	b.unlockAndNotify()
}

func (b *Bar) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Active: b.active, Value: b.value}
}

// Counts reports how many times Start and Done were called, including
// calls that changed nothing.
func (b *Bar) Counts() (starts uint64, dones uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts, b.dones
}

func (b *Bar) OnChange(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextObsID++
	id := b.nextObsID
	b.observers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

func (b *Bar) trickle(stop <-chan struct{}) {
	ticker := time.NewTicker(b.opts.TrickleSpeed)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if !b.active || b.stopTrick != stop {
				b.mu.Unlock()
				return
			}
			b.advanceLocked()
		}
	}
}

// unlockAndNotify releases b.mu and reports the current state. Observers see
// snapshots in the order the changes happened; they must not call back into
// the bar.
func (b *Bar) unlockAndNotify() {
	snap := Snapshot{Active: b.active, Value: b.value}
	observers := make([]func(Snapshot), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	b.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func incrementFor(value float64) float64 {
	switch {
	case value < 0.2:
		return 0.1
	case value < 0.5:
		return 0.04
	case value < 0.8:
		return 0.02
	case value < 0.99:
		return 0.005
	default:
		return 0
	}
}
