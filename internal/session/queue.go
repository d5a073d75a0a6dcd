package session

import "sync"

// DefaultQueueCapacity bounds the number of PCM chunks held while the
// session negotiates. 40 chunks of 4096 samples at 16 kHz is roughly ten
// seconds of audio, which comfortably covers a slow handshake.
const DefaultQueueCapacity = 40

// Queue is a bounded FIFO of PCM chunks awaiting a ready session. When full
// it evicts the oldest entry before appending: recent audio is worth more to
// the recognizer than a stale backlog, and speech recognition tolerates small
// gaps better than growing latency.
type Queue struct {
	mu       sync.Mutex
	chunks   [][]byte
	capacity int
	dropped  uint64
}

// NewQueue creates a queue with the given capacity. Non-positive capacities
// fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		chunks:   make([][]byte, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a chunk, evicting the oldest entry first when at capacity.
// It reports whether an eviction happened.
func (q *Queue) Push(chunk []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.chunks) >= q.capacity {
		copy(q.chunks, q.chunks[1:])
		q.chunks = q.chunks[:len(q.chunks)-1]
		q.dropped++
		evicted = true
	}
	q.chunks = append(q.chunks, chunk)
	return evicted
}

// Drain removes and returns all queued chunks in FIFO order. The queue is
// empty afterwards regardless of what the caller does with the result, which
// gives flush its discard-on-failure semantics.
func (q *Queue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.chunks
	q.chunks = make([][]byte, 0, q.capacity)
	return out
}

// Clear discards all queued chunks.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = q.chunks[:0]
}

// Len returns the current number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Dropped returns the total number of chunks evicted by overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
