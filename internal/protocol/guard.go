// Package protocol checks the ordering contract between the frame producer
// and its consumers.
//
// A violation is a programming error, not a runtime condition. Builds with
// the debug tag panic on the first one; release builds log it and carry on.
package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	// ErrFrameRegression is reported when a frame number is not exactly previous+1.
	ErrFrameRegression = errors.New("frame sequence violation")
	// ErrTimeRegression is reported when simulation time goes backwards.
	ErrTimeRegression = errors.New("simulation time regression")
	// ErrAfterStop is reported when a message arrives after the terminal Stop.
	ErrAfterStop = errors.New("message after stop")
)

// Violation is the panic value used by the Panic policy.
type Violation struct {
	Consumer string
	Err      error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %v", v.Consumer, v.Err)
}

func (v *Violation) Unwrap() error {
	return v.Err
}

// Policy decides what happens on a violation.
type Policy uint8

const (
	// Log records the violation and continues.
	Log Policy = iota + 1
	// Panic aborts immediately.
	Panic
)

func (p Policy) String() string {
	switch p {
	case Log:
		return "log"
	case Panic:
		return "panic"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Guard tracks the last frame seen by one consumer.
// It is not safe for concurrent use; each consumer owns its own Guard.
type Guard struct {
	name   string
	policy Policy
	logger *slog.Logger

	started  bool
	stopped  bool
	lastSeq  uint64
	lastTime float64

	violations atomic.Uint64
}

// NewGuard creates a guard for the named consumer. A zero policy selects
// the build default.
func NewGuard(name string, policy Policy, logger *slog.Logger) *Guard {
	if policy == 0 {
		policy = DefaultPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{name: name, policy: policy, logger: logger}
}

// Frame checks an incoming frame against the previous one.
// The returned error is nil when the frame is in order.
func (g *Guard) Frame(seq uint64, simTime float64) error {
	if g.stopped {
		return g.violate(fmt.Errorf("%w: frame %d", ErrAfterStop, seq))
	}

	var err error
	switch {
	case g.started && seq != g.lastSeq+1:
		err = fmt.Errorf("%w: got frame %d after %d", ErrFrameRegression, seq, g.lastSeq)
	case g.started && simTime < g.lastTime:
		err = fmt.Errorf("%w: %.8f after %.8f at frame %d", ErrTimeRegression, simTime, g.lastTime, seq)
	}

	g.started = true
	g.lastSeq = seq
	g.lastTime = simTime

	if err != nil {
		return g.violate(err)
	}
	return nil
}

// Stop records the terminal message. A second Stop is a violation.
func (g *Guard) Stop() error {
	if g.stopped {
		return g.violate(fmt.Errorf("%w: duplicate stop", ErrAfterStop))
	}
	g.stopped = true
	return nil
}

// Report records a violation detected outside of Frame and Stop.
func (g *Guard) Report(err error) error {
	return g.violate(err)
}

// Violations returns the number of violations seen so far.
func (g *Guard) Violations() uint64 {
	return g.violations.Load()
}

func (g *Guard) violate(err error) error {
	g.violations.Add(1)
	if g.policy == Panic {
		panic(&Violation{Consumer: g.name, Err: err})
	}
	g.logger.Error("Protocol violation", "consumer", g.name, "error", err)
	return err
}
