package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Kind tells a statistics report apart from a no-data report.
type Kind string

const (
	KindStats  Kind = "stats"
	KindNoData Kind = "no_data"
)

// Level is the severity a report is emitted at.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

const separator = "----------------------------------------------------------------"

// Report is one monitor emission.
type Report struct {
	Session  string
	Kind     Kind
	Level    Level
	At       time.Time
	Frame    uint64
	SimTime  float64
	Interval time.Duration
	Stats    Stats
}

// Stalled reports whether the window was flagged as slow.
func (r Report) Stalled() bool {
	return r.Kind == KindStats && r.Level == LevelWarn
}

// Text renders the operator console form of the report.
func (r Report) Text() string {
	if r.Kind == KindNoData {
		return fmt.Sprintf("No new frame in the last %s", r.Interval)
	}

	s := r.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "Frame times (min/max/avg): %.3f, %.3f, %.3f milliseconds\n",
		s.SimDelta.Min*1000, s.SimDelta.Max*1000, s.SimDelta.Mean*1000)
	fmt.Fprintf(&b, "Real times (min/max/avg): %.3f, %.3f, %.3f milliseconds\n",
		s.WallDelta.Min*1000, s.WallDelta.Max*1000, s.WallDelta.Mean*1000)
	fmt.Fprintf(&b, "Average FPS: %.3f\n", s.FPS)
	fmt.Fprintf(&b, "Unit count: %d, ballistics count: %d\n", s.MaxUnits, s.MaxBallistics)
	fmt.Fprintf(&b, "Time spent in frame capture (min/max/avg): %.3f, %.3f, %.3f milliseconds\n",
		s.Capture.Min*1000, s.Capture.Max*1000, s.Capture.Mean*1000)
	b.WriteString(separator)
	return b.String()
}
