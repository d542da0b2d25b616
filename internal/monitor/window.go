package monitor

import (
	"math"
	"time"
)

// Sample is what the monitor keeps from one frame.
type Sample struct {
	Units      int
	Ballistics int
	SimDelta   float64
	WallDelta  float64
	Capture    time.Duration
}

// Span is the min/max/mean of one series.
type Span struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats summarizes a window. Times are in seconds.
type Stats struct {
	Frames        int     `json:"frames"`
	SimDelta      Span    `json:"simDelta"`
	WallDelta     Span    `json:"wallDelta"`
	FPS           float64 `json:"fps"`
	MaxUnits      int     `json:"maxUnits"`
	MaxBallistics int     `json:"maxBallistics"`
	Capture       Span    `json:"capture"`
}

// Window accumulates samples between two reports.
type Window struct {
	samples []Sample
}

// Push appends a sample.
func (w *Window) Push(s Sample) {
	w.samples = append(w.samples, s)
}

// Len returns the number of samples.
func (w *Window) Len() int {
	return len(w.samples)
}

// Reset empties the window, keeping its storage.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

// Summary computes Stats over the window. ok is false when it is empty.
func (w *Window) Summary() (stats Stats, ok bool) {
	if len(w.samples) == 0 {
		return Stats{}, false
	}

	sim := newSpan()
	wall := newSpan()
	capture := newSpan()
	for _, s := range w.samples {
		sim.add(s.SimDelta)
		wall.add(s.WallDelta)
		capture.add(s.Capture.Seconds())
		stats.MaxUnits = max(stats.MaxUnits, s.Units)
		stats.MaxBallistics = max(stats.MaxBallistics, s.Ballistics)
	}

	n := len(w.samples)
	stats.Frames = n
	stats.SimDelta = sim.result(n)
	stats.WallDelta = wall.result(n)
	stats.Capture = capture.result(n)
	if stats.SimDelta.Mean > 0 {
		stats.FPS = 1 / stats.SimDelta.Mean
	}
	return stats, true
}

type spanAcc struct {
	min, max, sum float64
}

func newSpan() spanAcc {
	return spanAcc{min: math.Inf(1), max: math.Inf(-1)}
}

func (a *spanAcc) add(v float64) {
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
	a.sum += v
}

func (a *spanAcc) result(n int) Span {
	return Span{Min: a.min, Max: a.max, Mean: a.sum / float64(n)}
}
