package regime

import (
	"sync"
	"time"
)

// Sample is one recorded classification.
type Sample struct {
	Value float64   `json:"value"`
	Name  string    `json:"name"`
	At    time.Time `json:"at"`
}

// History is a bounded, read-only log of recent classifications used for
// trend detection. It is auxiliary: Classify never consults it.
type History struct {
	mu      sync.Mutex
	samples []Sample
	max     int
}

// NewHistory creates a history retaining up to max samples.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 64
	}
	return &History{max: max}
}

// Push appends a sample, evicting the oldest beyond capacity.
func (h *History) Push(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, s)
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

// Recent returns up to n most recent samples, newest last.
func (h *History) Recent(n int) []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.samples) {
		n = len(h.samples)
	}
	out := make([]Sample, n)
	copy(out, h.samples[len(h.samples)-n:])
	return out
}

// RateOfRise returns the index-value change per sample over the last n
// samples, or 0 when fewer than two samples exist. Positive values mean
// volatility is rising.
func (h *History) RateOfRise(n int) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) < 2 {
		return 0
	}
	if n <= 1 || n > len(h.samples) {
		n = len(h.samples)
	}
	window := h.samples[len(h.samples)-n:]
	return (window[len(window)-1].Value - window[0].Value) / float64(len(window)-1)
}
