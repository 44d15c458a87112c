package telemetry

import "time"

// Window is a fixed-capacity ring buffer of latency samples in milliseconds
// with running totals, so Push never rescans the buffer. It is not safe for
// concurrent use; the sampling loop owns it.
type Window struct {
	data      []float64
	pos       int
	count     int
	sum       float64
	jankCount int
	latest    float64
	latestAt  time.Time
	evictions int
	now       func() time.Time
}

// NewWindow creates a window holding at most capacity samples. A
// non-positive capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Window{
		data: make([]float64, capacity),
		now:  time.Now,
	}
}

// Push appends a sample, evicting the oldest one once the window is full,
// and returns the resulting snapshot.
func (w *Window) Push(latencyMs float64) Snapshot {
	if w.count == len(w.data) {
		w.evict(w.data[w.pos])
	} else {
		w.count++
	}

	w.data[w.pos] = latencyMs
	w.pos = (w.pos + 1) % len(w.data)
	w.sum += latencyMs
	if IsJank(latencyMs) {
		w.jankCount++
	}

	w.latest = latencyMs
	w.latestAt = w.now()

	return w.Snapshot()
}

// evict drops the running totals of the oldest sample. The slot itself is
// overwritten by the caller.
func (w *Window) evict(oldest float64) {
	w.sum -= oldest
	if IsJank(oldest) {
		w.jankCount--
	}

	// Subtracting floats forever accumulates error, re-derive the sum once
	// per full rotation.
	w.evictions++
	if w.evictions >= len(w.data) {
		w.evictions = 0
		w.resum()
	}
}

// resum recomputes the sum over the live samples excluding the slot at pos,
// which holds the sample being evicted.
func (w *Window) resum() {
	var sum float64
	for i := range w.data {
		if i == w.pos {
			continue
		}
		sum += w.data[i]
	}
	w.sum = sum
}

// Snapshot returns the current statistics
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:     w.latestAt,
		LatestLatency: w.latest,
		JankCount:     w.jankCount,
		TotalFrames:   w.count,
	}

	if w.count > 0 {
		snap.MovingAverage = w.sum / float64(w.count)
		snap.JankPercentage = 100 * float64(w.jankCount) / float64(w.count)
	}

	return snap
}

// Len returns the number of samples currently held
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity
func (w *Window) Cap() int {
	return len(w.data)
}

// JankCount returns the number of held samples above the jank threshold
func (w *Window) JankCount() int {
	return w.jankCount
}

// Values returns a copy of the held samples, oldest first
func (w *Window) Values() []float64 {
	if w.count == 0 {
		return nil
	}

	out := make([]float64, w.count)
	if w.count < len(w.data) {
		copy(out, w.data[:w.count])
	} else {
		n := copy(out, w.data[w.pos:])
		copy(out[n:], w.data[:w.pos])
	}

	return out
}

// Reset empties the window, keeping its capacity
func (w *Window) Reset() {
	clear(w.data)
	w.pos = 0
	w.count = 0
	w.sum = 0
	w.jankCount = 0
	w.latest = 0
	w.latestAt = time.Time{}
	w.evictions = 0
}
