// Package host defines the pull interface the recorder uses to read the
// simulation, and a capture-file implementation of it.
package host

import (
	"github.com/OCAP2/tetrad/internal/parser"
)

// Host is queried once per frame from the simulation's own thread.
type Host interface {
	// ModelTime returns the current simulation time in seconds.
	ModelTime() (float64, error)
	// IsPaused reports whether the simulation is paused.
	IsPaused() (bool, error)
	// Units returns one raw record per crewed unit.
	Units() ([]parser.Entry, error)
	// Ballistics returns one raw record per free-flying object.
	Ballistics() ([]parser.Entry, error)
	// MissionName identifies the session and is used to name output files.
	MissionName() (string, error)
}
