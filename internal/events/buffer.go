package events

import "sync"

// RingBuffer keeps the most recent events in a fixed-size circular buffer.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	head   int // index of the oldest event
	count  int
}

// NewRingBuffer creates a buffer retaining at most size events.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{events: make([]Event, size)}
}

// Add appends an event, dropping the oldest one once full.
func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	tail := (rb.head + rb.count) % len(rb.events)
	rb.events[tail] = e
	if rb.count < len(rb.events) {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % len(rb.events)
	}
}

// Snapshot returns the retained events oldest-first.
func (rb *RingBuffer) Snapshot() []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]Event, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		out = append(out, rb.events[(rb.head+i)%len(rb.events)])
	}
	return out
}

// Clear empties the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.count = 0
}
