// internal/storage/sink.go
package storage

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OCAP2/tetrad/internal/util"
)

// Sink is an append-only row stream. Rows are buffered inside the stream;
// Close flushes and finalizes it.
type Sink interface {
	Write(record []string) error
	Close() error
	// Path returns the file backing the sink, empty for Nop.
	Path() string
	// Rows returns the number of rows accepted so far.
	Rows() int64
}

// Stream directories under <writeDir>/Logs/Tetrad.
const (
	FramesDir  = "frames"
	ObjectsDir = "objects"
)

const fileTimeLayout = "2006-01-02 15-04-05"

// Extension of every compressed row file.
const Extension = ".csv.zst"

// LogRoot returns the directory holding everything the recorder writes.
func LogRoot(writeDir string) string {
	return filepath.Join(writeDir, "Logs", "Tetrad")
}

// FileName builds "<mission> - <local start time>.csv.zst".
func FileName(mission string, start time.Time) string {
	return fmt.Sprintf("%s - %s%s", util.SanitizeFileName(mission), start.Format(fileTimeLayout), Extension)
}

// FormatFloat renders v with a fixed number of decimals so output is
// stable across runs.
func FormatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// Nop is the sink used when a stream is disabled. It holds no resources.
type Nop struct{}

func (Nop) Write([]string) error { return nil }
func (Nop) Close() error         { return nil }
func (Nop) Path() string         { return "" }
func (Nop) Rows() int64          { return 0 }
