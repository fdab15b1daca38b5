// Package progress projects completion times and delivers result snapshots
// to sinks on a cadence decoupled from the simulation.
package progress

import "math"

// Projection is a time estimate. Known is false when nothing has completed.
type Projection struct {
	TotalMs     int64
	RemainingMs int64
	Known       bool
}

// Estimate extrapolates linearly: total = elapsed * total / completed.
func Estimate(completed, total, elapsedMs int64) Projection {
	if completed <= 0 || total <= 0 {
		return Projection{}
	}
	if completed >= total {
		return Projection{TotalMs: elapsedMs, RemainingMs: 0, Known: true}
	}
	projected := float64(elapsedMs) * float64(total) / float64(completed)
	t := int64(math.MaxInt64)
	if projected < math.MaxInt64 {
		t = int64(projected)
	}
	return Projection{TotalMs: t, RemainingMs: max(t-elapsedMs, 0), Known: true}
}

// DefaultWindowSize is the number of snapshots a run projects its rate over.
const DefaultWindowSize = 5

type sample struct {
	completed int64
	elapsedMs int64
}

// Window keeps the most recent progress samples in a ring and projects the
// remaining time from the throughput across them.
type Window struct {
	samples []sample
	next    int
	filled  bool
}

// NewWindow returns a window over the last size samples (at least 2).
func NewWindow(size int) *Window {
	return &Window{samples: make([]sample, max(size, 2))}
}

// Push records a snapshot, evicting the oldest once full.
func (w *Window) Push(completed, elapsedMs int64) {
	w.samples[w.next] = sample{completed: completed, elapsedMs: elapsedMs}
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.filled = true
	}
}

func (w *Window) span() (oldest, newest sample, ok bool) {
	count := w.next
	if w.filled {
		count = len(w.samples)
	}
	if count < 2 {
		return sample{}, sample{}, false
	}
	newest = w.samples[(w.next-1+len(w.samples))%len(w.samples)]
	if w.filled {
		oldest = w.samples[w.next]
	} else {
		oldest = w.samples[0]
	}
	return oldest, newest, true
}

// Rate is units completed per second across the window.
func (w *Window) Rate() (float64, bool) {
	oldest, newest, ok := w.span()
	if !ok {
		return 0, false
	}
	dt := newest.elapsedMs - oldest.elapsedMs
	dc := newest.completed - oldest.completed
	if dt <= 0 || dc <= 0 {
		return 0, false
	}
	return float64(dc) / (float64(dt) / 1000), true
}

// Remaining projects the time left to reach total at the windowed rate.
func (w *Window) Remaining(total int64) (Projection, bool) {
	rate, ok := w.Rate()
	if !ok {
		return Projection{}, false
	}
	_, newest, _ := w.span()
	left := max(total-newest.completed, 0)
	remaining := int64(float64(left) / rate * 1000)
	return Projection{TotalMs: newest.elapsedMs + remaining, RemainingMs: remaining, Known: true}, true
}
