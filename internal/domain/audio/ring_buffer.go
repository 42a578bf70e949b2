package audio

import "sync"

// RingBuffer is a fixed-capacity circular store of float32 PCM samples.
// Overflow drops the oldest samples, never the newest and never the caller:
// the capture callback must not block or allocate, so Write only copies into
// the preallocated backing array under a short-held lock.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float32
	cap  int
	head int // next write index
	size int // valid samples, size <= cap
}

// NewRingBuffer creates a RingBuffer holding up to capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		buf: make([]float32, capacity),
		cap: capacity,
	}
}

// Write appends samples, evicting the oldest one-for-one when full.
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(samples)
	if n == 0 {
		return
	}
	if n >= rb.cap {
		// Only the newest cap samples can survive.
		copy(rb.buf, samples[n-rb.cap:])
		rb.head = 0
		rb.size = rb.cap
		return
	}

	tail := copy(rb.buf[rb.head:], samples)
	copy(rb.buf, samples[tail:])
	rb.head = (rb.head + n) % rb.cap

	rb.size += n
	if rb.size > rb.cap {
		rb.size = rb.cap
	}
}

// Drain returns every buffered sample in chronological order and resets the
// buffer. The slice is a copy; the caller owns it. Returns nil when empty.
func (rb *RingBuffer) Drain() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	out := make([]float32, rb.size)
	// Oldest valid sample sits at (head - size + cap) % cap.
	start := (rb.head - rb.size + rb.cap) % rb.cap
	n := copy(out, rb.buf[start:])
	copy(out[n:], rb.buf[:rb.size-n])

	rb.head = 0
	rb.size = 0
	return out
}

// Len reports the number of samples currently buffered.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Cap reports the fixed capacity in samples.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}
