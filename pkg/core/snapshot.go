// pkg/core/snapshot.go
package core

import "time"

// FrameSnapshot is everything captured for one host frame.
// It is built once by the producer and then only read; consumers share the
// same pointer and must never modify it.
type FrameSnapshot struct {
	// Frame increases by exactly one per emitted snapshot, starting at 1.
	Frame uint64
	// SimTime is the host's model time in seconds.
	SimTime float64
	// WallTime is seconds elapsed since session start.
	WallTime float64
	// CaptureDuration is the time the producer spent building the snapshot.
	CaptureDuration time.Duration

	Units      []WorldUnit
	Ballistics []WorldObject
}

// UnitCount returns the number of crewed units in the frame.
func (s *FrameSnapshot) UnitCount() int {
	return len(s.Units)
}

// BallisticsCount returns the number of ballistic objects in the frame.
func (s *FrameSnapshot) BallisticsCount() int {
	return len(s.Ballistics)
}

// EntityCount returns units plus ballistic objects.
func (s *FrameSnapshot) EntityCount() int {
	return len(s.Units) + len(s.Ballistics)
}
