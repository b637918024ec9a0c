package utils

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a ring of recent duration samples for percentile queries.
type LatencyTracker struct {
	mu       sync.RWMutex
	ring     []time.Duration
	next     int
	observed int
}

// NewLatencyTracker creates a tracker holding up to size samples (default 512).
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, 0, size)}
}

// Observe records d, overwriting the oldest sample once the ring is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	d = max(d, 0)
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ring) < cap(l.ring) {
		l.ring = append(l.ring, d)
	} else {
		l.ring[l.next] = d
	}
	l.next = (l.next + 1) % cap(l.ring)
	l.observed++
}

// Last returns the most recent sample, or zero when nothing was observed.
func (l *LatencyTracker) Last() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.ring) == 0 {
		return 0
	}
	return l.ring[(l.next-1+cap(l.ring))%cap(l.ring)]
}

// Percentile returns the nearest-rank duration for p in [0, 100] over held samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	sorted := slices.Clone(l.ring)
	l.mu.RUnlock()
	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	p = min(max(p, 0), 100)
	return sorted[int(p/100*float64(len(sorted)-1))]
}

// Len returns the number of samples currently held.
func (l *LatencyTracker) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ring)
}

// Count returns how many samples were ever observed.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.observed
}
