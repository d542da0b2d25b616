// Package status is the display consumer. It keeps a small text file with
// the latest frame so an operator can watch a session from outside the host.
package status

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/tetrad/internal/channel"
	"github.com/OCAP2/tetrad/internal/geo"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
	"github.com/dustin/go-humanize"
)

// Name identifies the display among session consumers.
const Name = "status"

// FileName is written under the log root.
const FileName = "status.txt"

// Board rewrites the status file. Run owns all state.
type Board struct {
	path     string
	mission  string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	started  time.Time
	last     time.Time
	frames   uint64
	writes   int
	lastSnap *core.FrameSnapshot
}

// New creates a board writing to path. interval <= 0 rewrites on every frame.
func New(path, mission string, interval time.Duration, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		path:     path,
		mission:  mission,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run consumes messages until Stop and leaves a final status behind.
func (b *Board) Run(rx channel.Receiver[streaming.Message]) error {
	defer rx.Detach()

	b.started = b.now()
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("error creating status directory: %w", err)
	}

	for msg := range rx.Receive() {
		if msg.IsStop() {
			return b.write(true)
		}
		b.Update(msg.Snapshot)
	}
	return b.write(true)
}

// Update records a snapshot and rewrites the file when due.
func (b *Board) Update(s *core.FrameSnapshot) {
	if s == nil {
		return
	}
	b.frames++
	b.lastSnap = s

	now := b.now()
	if b.interval > 0 && !b.last.IsZero() && now.Sub(b.last) < b.interval {
		return
	}
	b.last = now
	if err := b.write(false); err != nil {
		b.logger.Warn("Error writing status file", "path", b.path, "error", err)
	}
}

// Writes returns how many times the file was rewritten.
func (b *Board) Writes() int {
	return b.writes
}

func (b *Board) write(stopped bool) error {
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.Render(stopped)), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return err
	}
	b.writes++
	return nil
}

// Render formats the current status.
func (b *Board) Render(stopped bool) string {
	var sb strings.Builder
	state := "recording"
	if stopped {
		state = "stopped"
	}
	fmt.Fprintf(&sb, "mission: %s\n", b.mission)
	fmt.Fprintf(&sb, "state: %s\n", state)
	fmt.Fprintf(&sb, "updated: %s\n", b.now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "frames received: %s\n", humanize.Comma(int64(b.frames)))

	s := b.lastSnap
	if s == nil {
		sb.WriteString("no frame yet\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "frame: %d\n", s.Frame)
	fmt.Fprintf(&sb, "sim time: %.3f s\n", s.SimTime)
	fmt.Fprintf(&sb, "wall time: %.3f s\n", s.WallTime)
	fmt.Fprintf(&sb, "units: %d, ballistics: %d\n", s.UnitCount(), s.BallisticsCount())
	fmt.Fprintf(&sb, "capture: %s\n", s.CaptureDuration)

	lo, hi, ok := geo.Extent(s).MinMaxXYs()
	if !ok {
		sb.WriteString("extent (EPSG:3857): empty\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "extent (EPSG:3857): %.0f %.0f, %.0f %.0f (%.1f x %.1f km)\n",
		lo.X, lo.Y, hi.X, hi.Y, (hi.X-lo.X)/1000, (hi.Y-lo.Y)/1000)
	return sb.String()
}
