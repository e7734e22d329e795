// Package ringbuffer implements the fixed-capacity circular frame store
// described in §4.1, grounded on RingFrameBuffer.cpp: a frame_id-indexed
// slot map where a stale or overwritten id is reported as "not found" rather
// than silently returning the wrong frame.
package ringbuffer

import "sync"

// Stats tracks ring buffer overwrite activity.
type Stats struct {
	TotalOverwriteFrames uint64
}

type slot struct {
	valid       bool
	frameID     uint32
	pixels      []byte
	timestampMs uint64
}

// RingBuffer is a thread-safe, fixed-capacity circular store mapping
// frame_id to (pixels, timestamp).
type RingBuffer struct {
	mu       sync.Mutex
	slots    []slot
	capacity uint32
	stats    Stats
}

// New creates a RingBuffer with the given capacity (must be > 0).
func New(capacity uint32) *RingBuffer {
	if capacity == 0 {
		capacity = 1
	}
	return &RingBuffer{
		slots:    make([]slot, capacity),
		capacity: capacity,
	}
}

// Push stores pixels for frameID, overwriting whatever slot
// frameID%capacity currently holds. If that slot was valid and held a
// different frame id, the overwrite counter is incremented.
func (r *RingBuffer) Push(frameID uint32, pixels []byte, timestampMs uint64) {
	idx := frameID % r.capacity

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.slots[idx]
	if s.valid && s.frameID != frameID {
		r.stats.TotalOverwriteFrames++
	}

	stored := make([]byte, len(pixels))
	copy(stored, pixels)

	s.valid = true
	s.frameID = frameID
	s.pixels = stored
	s.timestampMs = timestampMs
}

// Get returns the pixels and timestamp stored for frameID, or ok=false if
// the slot is empty or now holds a different frame (it was overwritten).
func (r *RingBuffer) Get(frameID uint32) (pixels []byte, timestampMs uint64, ok bool) {
	idx := frameID % r.capacity

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.slots[idx]
	if !s.valid || s.frameID != frameID {
		return nil, 0, false
	}

	out := make([]byte, len(s.pixels))
	copy(out, s.pixels)
	return out, s.timestampMs, true
}

// Stats returns a snapshot of the ring buffer's overwrite counters.
func (r *RingBuffer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
