// Package recorder is the persistence consumer. It writes every snapshot
// as one frame row and one row per entity into two compressed streams.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OCAP2/tetrad/internal/channel"
	"github.com/OCAP2/tetrad/internal/config"
	"github.com/OCAP2/tetrad/internal/protocol"
	"github.com/OCAP2/tetrad/internal/storage"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
	"github.com/dustin/go-humanize"
)

// Name identifies the recorder among session consumers.
const Name = "recorder"

// Stream names used in logs and metrics.
const (
	FramesStream  = "frames"
	ObjectsStream = "objects"
)

// ErrNoStop is returned by Run when the channel ended without a Stop.
var ErrNoStop = errors.New("channel closed without stop")

// OpenFunc opens a sink at path. Tests replace it to inject failures.
type OpenFunc func(path string, level int) (storage.Sink, error)

func openZstd(path string, level int) (storage.Sink, error) {
	return storage.OpenZstdCSV(path, level)
}

// Options tweak how the recorder opens its sinks.
type Options struct {
	Logger *slog.Logger
	Open   OpenFunc
	Guard  *protocol.Guard
}

// StreamStats reports what one stream did during the session.
type StreamStats struct {
	Name     string
	Path     string
	Rows     int64
	Failures int64
	Degraded bool
}

// Recorder is Open from a successful Open call until Close.
type Recorder struct {
	frames    *stream
	objects   *stream
	precision int
	logger    *slog.Logger
	guard     *protocol.Guard
	closed    bool
	closeErr  error
}

// Open creates both streams below <writeDir>/Logs/Tetrad. A disabled stream
// gets a no-op sink. Any open failure is returned and nothing is left open.
func Open(cfg config.SessionConfig, mission string, start time.Time, opts Options) (*Recorder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	open := opts.Open
	if open == nil {
		open = openZstd
	}
	guard := opts.Guard
	if guard == nil {
		guard = protocol.NewGuard(Name, 0, logger)
	}

	m := meter()
	written, err := m.Int64Counter("recorder.rows.written")
	if err != nil {
		return nil, fmt.Errorf("creating rows written counter: %w", err)
	}
	failed, err := m.Int64Counter("recorder.rows.failed")
	if err != nil {
		return nil, fmt.Errorf("creating rows failed counter: %w", err)
	}

	root := storage.LogRoot(cfg.WriteDir)
	name := storage.FileName(mission, start)

	frameSink, err := openSink(open, cfg.EnableFramerateLog, filepath.Join(root, storage.FramesDir, name), cfg.Storage.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("frame log: %w", err)
	}
	objectSink, err := openSink(open, cfg.EnableObjectLog, filepath.Join(root, storage.ObjectsDir, name), cfg.Storage.CompressionLevel)
	if err != nil {
		_ = frameSink.Close()
		return nil, fmt.Errorf("object log: %w", err)
	}

	r := &Recorder{
		frames:    newStream(FramesStream, frameSink, logger, cfg.Storage.MaxConsecutiveFailures, written, failed),
		objects:   newStream(ObjectsStream, objectSink, logger, cfg.Storage.MaxConsecutiveFailures, written, failed),
		precision: cfg.Storage.Precision,
		logger:    logger,
		guard:     guard,
	}
	logger.Info("Recorder opened",
		"frames", frameSink.Path(),
		"objects", objectSink.Path(),
		"precision", r.precision)
	return r, nil
}

func openSink(open OpenFunc, enabled bool, path string, level int) (storage.Sink, error) {
	if !enabled {
		return storage.Nop{}, nil
	}
	return open(path, level)
}

// Run consumes messages until Stop, then finalizes both streams.
// Once Run returns the receiver is detached.
func (r *Recorder) Run(rx channel.Receiver[streaming.Message]) error {
	defer rx.Detach()

	for msg := range rx.Receive() {
		switch msg.Kind {
		case streaming.KindUpdate:
			r.Record(msg.Snapshot)
		case streaming.KindStop:
			_ = r.guard.Stop()
			return r.Close()
		default:
			r.logger.Warn("Ignoring unknown message", "kind", msg.Kind)
		}
	}

	r.logger.Warn("Recorder input ended without stop")
	return errors.Join(ErrNoStop, r.Close())
}

// Record writes the rows for one snapshot.
func (r *Recorder) Record(s *core.FrameSnapshot) {
	if s == nil {
		return
	}
	if r.closed {
		_ = r.guard.Report(fmt.Errorf("%w: frame %d", protocol.ErrAfterStop, s.Frame))
		return
	}
	if err := r.guard.Frame(s.Frame, s.SimTime); err != nil {
		return
	}

	r.write(s)
}

func (r *Recorder) write(s *core.FrameSnapshot) {
	frame := strconv.FormatUint(s.Frame, 10)
	sim := storage.FormatFloat(s.SimTime, r.precision)
	wall := storage.FormatFloat(s.WallTime, r.precision)

	r.frames.write([]string{
		frame, sim, wall,
		strconv.Itoa(s.UnitCount()),
		strconv.Itoa(s.BallisticsCount()),
	})

	if _, ok := r.objects.sink.(storage.Nop); ok {
		return
	}
	for i := range s.Units {
		u := &s.Units[i]
		r.objects.write(objectRow(frame, sim, wall, u.UnitName, u.GroupName, &u.Object, r.precision))
	}
	for i := range s.Ballistics {
		r.objects.write(objectRow(frame, sim, wall, "", "", &s.Ballistics[i], r.precision))
	}
}

// objectRow lays out the 18 object columns. Units and ballistic objects
// share it; only units carry unit and group names.
func objectRow(frame, sim, wall, unitName, groupName string, o *core.WorldObject, prec int) []string {
	return []string{
		frame, sim, wall,
		unitName, groupName,
		o.Name,
		strconv.Itoa(o.Country),
		o.Coalition,
		strconv.Itoa(o.CoalitionID),
		storage.FormatFloat(o.LatLonAlt.Lat, prec),
		storage.FormatFloat(o.LatLonAlt.Lon, prec),
		storage.FormatFloat(o.LatLonAlt.Alt, prec),
		storage.FormatFloat(o.Heading, prec),
		storage.FormatFloat(o.Pitch, prec),
		storage.FormatFloat(o.Bank, prec),
		storage.FormatFloat(o.Position.X, prec),
		storage.FormatFloat(o.Position.Y, prec),
		storage.FormatFloat(o.Position.Z, prec),
	}
}

// Close finalizes both streams. Later calls return the first result.
func (r *Recorder) Close() error {
	if r.closed {
		return r.closeErr
	}
	r.closed = true

	var errs []error
	for _, s := range []*stream{r.frames, r.objects} {
		if err := s.sink.Close(); err != nil {
			r.logger.Error("Failed to finalize stream", "stream", s.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		r.logFinalized(s)
	}
	r.closeErr = errors.Join(errs...)
	return r.closeErr
}

func (r *Recorder) logFinalized(s *stream) {
	path := s.path
	if path == "" {
		return
	}
	size := "unknown"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	r.logger.Info("Stream finalized",
		"stream", s.name,
		"path", path,
		"rows", humanize.Comma(s.rows),
		"size", size,
		"failures", s.failures)
}

// Stats returns per-stream counters, frames first.
func (r *Recorder) Stats() []StreamStats {
	out := make([]StreamStats, 0, 2)
	for _, s := range []*stream{r.frames, r.objects} {
		out = append(out, StreamStats{
			Name:     s.name,
			Path:     s.path,
			Rows:     s.rows,
			Failures: s.failures,
			Degraded: s.degraded,
		})
	}
	return out
}
