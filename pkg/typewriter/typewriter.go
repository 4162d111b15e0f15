// Package typewriter reveals already-received text one character per tick so
// that a burst of streamed text is displayed at a steady, readable pace.
//
// Each output region owns a Buffer. Enqueue appends text and starts a flush
// task if none is running; the flush task reveals one rune per tick and stops
// itself once everything enqueued so far has been shown. Reset cancels the
// flush task and discards all text, so a new run never shows leftovers of the
// previous one.
package typewriter

import (
	"sync"
	"time"
)

// DefaultTick is the default reveal period.
const DefaultTick = 12 * time.Millisecond

// RevealFunc is invoked for each revealed rune, in order. It runs without the
// Buffer's state lock held, so it may call Enqueue, Reset, or any reader; it
// must not call Tick. A reveal already handed to the callback when Reset is
// called from another goroutine may still complete after Reset returns.
type RevealFunc func(r rune)

// Option configures a Buffer.
type Option func(*Buffer)

// WithTick sets the reveal period.
func WithTick(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.tick = d
		}
	}
}

// WithRevealFunc registers a callback receiving every revealed rune.
func WithRevealFunc(fn RevealFunc) Option {
	return func(b *Buffer) {
		b.onReveal = fn
	}
}

// WithManualTicks disables the internal ticker. The flush task is then only
// advanced by calls to Tick, which lets a caller-owned scheduler (a UI event
// loop or a test) drive the reveal deterministically.
func WithManualTicks() Option {
	return func(b *Buffer) {
		b.manual = true
	}
}

// Buffer is the render state of one output region. It is safe for concurrent
// use.
type Buffer struct {
	// revealMu serializes ticks so reveal callbacks arrive in cursor order.
	revealMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	text     []rune
	cursor   int
	active   bool
	stop     chan struct{}
	tick     time.Duration
	manual   bool
	onReveal RevealFunc
}

// NewBuffer returns an empty Buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{tick: DefaultTick}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue appends text and starts the flush task if it is not running.
func (b *Buffer) Enqueue(text string) {
	if text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.text = append(b.text, []rune(text)...)
	if b.active {
		return
	}

	b.active = true
	if b.manual {
		return
	}

	stop := make(chan struct{})
	b.stop = stop
	go b.run(stop)
}

// Reset cancels the flush task and clears text and cursor. It is idempotent.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.halt()
	b.gen++
	b.text = nil
	b.cursor = 0
}

// Tick reveals at most one rune. It reports whether a rune was revealed.
func (b *Buffer) Tick() bool {
	b.revealMu.Lock()
	defer b.revealMu.Unlock()

	b.mu.Lock()
	r, gen, ok := b.advance()
	b.mu.Unlock()

	if ok {
		b.reveal(r, gen)
	}
	return ok
}

// TickPeriod returns the reveal period, for callers driving manual ticks.
func (b *Buffer) TickPeriod() time.Duration {
	return b.tick
}

// Revealed returns the text shown so far. It is always a prefix of Text.
func (b *Buffer) Revealed() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.text[:b.cursor])
}

// Text returns everything enqueued since the last Reset.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.text)
}

// Pending returns the number of runes not yet revealed.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.text) - b.cursor
}

// Active reports whether a flush task is scheduled.
func (b *Buffer) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.active
}

// advance moves the cursor past the next rune and halts the flush task once
// the cursor has caught up. It returns the rune and the generation it belongs
// to. Callers hold b.mu.
func (b *Buffer) advance() (rune, uint64, bool) {
	if b.cursor >= len(b.text) {
		b.halt()
		return 0, b.gen, false
	}

	r := b.text[b.cursor]
	b.cursor++

	if b.cursor >= len(b.text) {
		b.halt()
	}
	return r, b.gen, true
}

// reveal hands r to the callback unless a Reset has started a new generation
// since r was taken. Callers hold b.revealMu but not b.mu.
func (b *Buffer) reveal(r rune, gen uint64) {
	if b.onReveal == nil {
		return
	}

	b.mu.Lock()
	stale := gen != b.gen
	b.mu.Unlock()

	if !stale {
		b.onReveal(r)
	}
}

// halt releases the flush task. Callers hold b.mu.
func (b *Buffer) halt() {
	b.active = false
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
}

// run is the flush task. It exits when its stop channel is closed, either by
// the Buffer catching up or by Reset.
func (b *Buffer) run(stop chan struct{}) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.step(stop)
		}
	}
}

// step advances on behalf of the flush task owning stop. A tick that raced
// with Reset or with a newer flush task is dropped.
func (b *Buffer) step(stop chan struct{}) {
	b.revealMu.Lock()
	defer b.revealMu.Unlock()

	b.mu.Lock()
	if b.stop != stop {
		b.mu.Unlock()
		return
	}
	r, gen, ok := b.advance()
	b.mu.Unlock()

	if ok {
		b.reveal(r, gen)
	}
}
