package events

import (
	"sync"
)

// Kind discriminates host events.
type Kind int

const (
	// KindCommand fires when a host command is invoked.
	KindCommand Kind = iota
	// KindFileType fires when a file of some type is opened.
	KindFileType
	// KindKey fires when a key chord is pressed.
	KindKey
	// KindManifest fires when the manifest file changes on disk.
	KindManifest
)

// String returns the kind's manifest-syntax name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "cmd"
	case KindFileType:
		return "ft"
	case KindKey:
		return "key"
	case KindManifest:
		return "manifest"
	default:
		return "unknown"
	}
}

// Event is a single host event delivered to subscribers.
type Event struct {
	Kind  Kind
	Value string
}

// Handler receives events on the bus's dispatch goroutine. Handlers must
// not block; anything slow belongs on its own goroutine with completion
// reported via a follow-up event or callback.
type Handler func(Event)

// Bus is a single-goroutine cooperative dispatch loop. Post enqueues an
// event; the loop forwards each event to every subscriber in subscription
// order. Running handlers on one goroutine means a handler that posts
// further events (extension setup registering new triggers) observes a
// consistent world.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	queue    chan Event
	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the event queue depth.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan Event, n)
		}
	}
}

// NewBus creates a bus. Call Start to begin dispatching.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queue: make(chan Event, 64),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds a handler and returns an unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	index := len(b.handlers) - 1
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Nil out instead of removing to avoid index shifting.
		if index < len(b.handlers) {
			b.handlers[index] = nil
		}
	}
}

// Post enqueues an event for dispatch. It blocks only if the queue is
// full and never after Stop.
func (b *Bus) Post(ev Event) {
	select {
	case <-b.stop:
	case b.queue <- ev:
	}
}

// Start launches the dispatch goroutine. Starting twice is a no-op.
func (b *Bus) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.loop()
}

// Stop halts dispatch after draining queued events and waits for the
// loop to exit. Stopping twice is a no-op, like Start.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.stop)
	<-b.done
}

func (b *Bus) loop() {
	defer close(b.done)
	for {
		select {
		case ev := <-b.queue:
			b.dispatch(ev)
		case <-b.stop:
			// Drain whatever was queued before the stop.
			for {
				select {
				case ev := <-b.queue:
					b.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

// dispatch forwards one event to all handlers with panic recovery, so a
// misbehaving subscriber cannot kill the loop.
func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		func() {
			defer func() {
				recover()
			}()
			h(ev)
		}()
	}
}
