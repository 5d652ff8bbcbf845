package stats

import (
	"sort"
	"sync"
)

// Percentile returns the value at sorted index floor(n*q) of the samples.
// This is a plain sorted-index lookup, not an interpolation. Returns 0 for
// an empty sample set. q outside [0,1] is clamped.
func Percentile(samples []float64, q float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Mean returns the arithmetic mean of the samples, 0 when empty.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// Buffer is a capped sample buffer with a retain-most-recent overflow
// policy: adding past capacity discards the oldest sample.
//
// The running average is always recomputed from the full buffer rather
// than smoothed exponentially, keeping behavior reproducible.
type Buffer struct {
	mu      sync.Mutex
	max     int
	samples []float64
}

// DefaultBufferSize is the capacity used when none is given.
const DefaultBufferSize = 1000

// NewBuffer creates a buffer holding at most max samples.
// max <= 0 uses DefaultBufferSize.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &Buffer{
		max:     max,
		samples: make([]float64, 0, max),
	}
}

// Add appends a sample, evicting the oldest when at capacity.
func (b *Buffer) Add(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) >= b.max {
		copy(b.samples, b.samples[1:])
		b.samples = b.samples[:len(b.samples)-1]
	}
	b.samples = append(b.samples, v)
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Values returns a copy of the retained samples in insertion order.
func (b *Buffer) Values() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(b.samples))
	copy(out, b.samples)
	return out
}

// Mean returns the mean of the retained samples.
func (b *Buffer) Mean() float64 {
	return Mean(b.Values())
}

// Percentile returns the q-percentile of the retained samples.
func (b *Buffer) Percentile(q float64) float64 {
	return Percentile(b.Values(), q)
}

// Reset discards all retained samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}
