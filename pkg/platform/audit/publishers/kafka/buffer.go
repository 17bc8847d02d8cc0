package kafka

import (
	"sync"

	audit "votechain/pkg/platform/audit"
)

// RingBuffer holds security events awaiting delivery to the broker.
// When full, the oldest events are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	events   []audit.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	// Stats
	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		events:   make([]audit.Event, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary.
func (b *RingBuffer) Enqueue(event audit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		// Drop oldest
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// Requeue puts a failed batch back at the head of the queue, dropping the
// oldest of it when the buffer cannot hold everything.
func (b *RingBuffer) Requeue(batch []audit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	free := b.capacity - b.count
	if len(batch) > free {
		b.dropped += int64(len(batch) - free)
		batch = batch[len(batch)-free:]
	}
	for i := len(batch) - 1; i >= 0; i-- {
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.events[b.tail] = batch[i]
		b.count++
	}
}

// DequeueBatch removes up to n events from the buffer.
func (b *RingBuffer) DequeueBatch(n int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	if n > b.count {
		n = b.count
	}

	result := make([]audit.Event, n)
	for i := range n {
		result[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return result
}

// Len returns the current number of events in the buffer.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped events.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
