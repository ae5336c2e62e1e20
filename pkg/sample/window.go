package sample

import (
	"sync"
	"time"
)

// DefaultWindow is used when a non-positive duration is requested.
const DefaultWindow = 10 * time.Second

// Window keeps the samples of the last Duration, ordered oldest first.
// Removal is based on timestamp, not on the number of samples.
type Window struct {
	mu       sync.RWMutex
	duration time.Duration
	samples  []Sample
}

// NewWindow creates a window spanning d.
func NewWindow(d time.Duration) *Window {
	if d <= 0 {
		d = DefaultWindow
	}
	return &Window{
		duration: d,
		samples:  make([]Sample, 0),
	}
}

// Add appends s and drops samples older than the window.
func (w *Window) Add(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, s)

	cutoff := s.Timestamp.Add(-w.duration)
	cutoffIndex := 0
	for i, old := range w.samples {
		if old.Timestamp.After(cutoff) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(w.samples, w.samples[cutoffIndex:])
		w.samples = w.samples[:n]
	}
}

// Snapshot returns a decimated copy of at most maxPoints samples (all when maxPoints <= 0).
func (w *Window) Snapshot(dst []Sample, maxPoints int) []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return DownsampleSamples(dst, w.samples, maxPoints)
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

// Latest returns the newest sample.
func (w *Window) Latest() (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.samples) == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}
