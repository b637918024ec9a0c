// Package history keeps bounded per-metric sample windows for sparklines.
package history

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/miradorstack/mirador-console/internal/models"
)

// DefaultCapacity is the number of samples retained per key.
const DefaultCapacity = 30

// Buffer is a set of FIFO windows keyed by metric key. It is safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]models.HistoryPoint
	now      func() time.Time
}

// New returns a buffer holding at most capacity points per key.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, series: make(map[string][]models.HistoryPoint), now: time.Now}
}

// Capacity reports the per-key bound.
func (b *Buffer) Capacity() int { return b.capacity }

// Append records value for key, clamped to [0,1], evicting the oldest point when full.
func (b *Buffer) Append(key string, value float64) models.HistoryPoint {
	point := models.HistoryPoint{
		ID:    strconv.FormatInt(b.now().UnixMilli(), 10) + key,
		Value: clamp(value),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	points := append(b.series[key], point)
	if over := len(points) - b.capacity; over > 0 {
		points = append([]models.HistoryPoint(nil), points[over:]...)
	}
	b.series[key] = points
	return point
}

// Points returns a copy of the window for key, oldest first.
func (b *Buffer) Points(key string) []models.HistoryPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.HistoryPoint(nil), b.series[key]...)
}

// Values returns the window for key as plain values, oldest first.
func (b *Buffer) Values(key string) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	points := b.series[key]
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// Keys lists tracked keys in sorted order.
func (b *Buffer) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.series))
	for k := range b.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies every window.
func (b *Buffer) Snapshot() map[string][]models.HistoryPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]models.HistoryPoint, len(b.series))
	for k, points := range b.series {
		out[k] = append([]models.HistoryPoint(nil), points...)
	}
	return out
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
