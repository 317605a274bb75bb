package progress

import "sync"

// DefaultBuffer is the per-subscriber queue length used by NewBus.
const DefaultBuffer = 256

// Bus is a Sink that delivers events to any number of subscribers.
// Each subscriber gets its own buffered channel; a full channel blocks
// Emit rather than dropping, so a slow subscriber slows transfers down
// but never loses their terminal events.  Subscribe before starting a
// transfer to see its first events.
type Bus struct {
	buffer int

	quit      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one subscriber's view of a Bus.
type Subscription struct {
	bus    *Bus
	ch     chan Event
	filter func(Event) bool
	done   chan struct{}
	stop   sync.Once

	// sendMu is held shared by Emit while it sends on ch and exclusively
	// by shut, so ch is never closed under a sender.
	sendMu sync.RWMutex
	shut   bool
}

// NewBus returns a Bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		buffer: buffer,
		quit:   make(chan struct{}),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber.  A non-nil filter restricts
// delivery to events it accepts.
func (b *Bus) Subscribe(filter func(Event) bool) *Subscription {
	s := &Subscription{
		bus:    b,
		ch:     make(chan Event, b.buffer),
		filter: filter,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.shut = true
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// ForTransfer returns a filter matching one transfer id.
func ForTransfer(id string) func(Event) bool {
	return func(e Event) bool { return e.TransferID == id }
}

// Emit delivers e to every matching subscriber.  The bus lock is not
// held while sending, so a full subscriber delays only the Emit calls
// that have to reach it.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		if s.filter == nil || s.filter(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(e, b.quit)
	}
}

// Close unsubscribes everyone and closes their channels.  Later Emit
// calls are no-ops.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.quit) })

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
		delete(b.subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// Events returns the delivery channel.  It is closed by Unsubscribe or
// Bus.Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Unsubscribe stops delivery and closes the channel.  Events already
// queued remain readable.  It is safe to call while an Emit is blocked
// on this subscriber.
func (s *Subscription) Unsubscribe() {
	s.stop.Do(func() { close(s.done) })

	b := s.bus
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()

	s.close()
}

func (s *Subscription) deliver(e Event, quit <-chan struct{}) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.shut {
		return
	}
	select {
	case s.ch <- e:
	case <-s.done:
	case <-quit:
	}
}

// close waits for in-flight sends and closes ch.  Callers close done or
// the bus quit channel first so those sends return.
func (s *Subscription) close() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.shut {
		s.shut = true
		close(s.ch)
	}
}
