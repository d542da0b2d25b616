// Package influx writes monitor reports as InfluxDB line protocol into a
// gzip file, ready for `influx write` after the session.
package influx

import (
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/tetrad/internal/monitor"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of every point.
const Measurement = "tetrad_frames"

// Extension of line protocol files.
const Extension = ".lp.gz"

// LineFile is a monitor.ReportSink backed by a gzip line protocol file.
type LineFile struct {
	path    string
	mission string
	logger  zerolog.Logger

	mu     sync.Mutex
	file   *os.File
	gz     *gzip.Writer
	points int
	closed bool
}

// Open creates the stats file at path.
func Open(path, mission string, logger zerolog.Logger) (*LineFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating stats directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error creating stats file: %w", err)
	}
	logger.Debug().Str("path", path).Msg("Stats file opened")
	return &LineFile{
		path:    path,
		mission: mission,
		logger:  logger,
		file:    file,
		gz:      gzip.NewWriter(file),
	}, nil
}

// Point converts a report into a line protocol point.
func Point(r monitor.Report, mission string) *influxdb2_write.Point {
	tags := map[string]string{
		"kind":    string(r.Kind),
		"level":   string(r.Level),
		"mission": mission,
	}
	if r.Session != "" {
		tags["session"] = r.Session
	}

	fields := map[string]any{
		"frame":    r.Frame,
		"sim_time": r.SimTime,
	}
	if r.Kind == monitor.KindStats {
		s := r.Stats
		fields["frames"] = s.Frames
		fields["sim_delta_min"] = s.SimDelta.Min
		fields["sim_delta_max"] = s.SimDelta.Max
		fields["sim_delta_mean"] = s.SimDelta.Mean
		fields["wall_delta_min"] = s.WallDelta.Min
		fields["wall_delta_max"] = s.WallDelta.Max
		fields["wall_delta_mean"] = s.WallDelta.Mean
		fields["fps"] = s.FPS
		fields["max_units"] = s.MaxUnits
		fields["max_ballistics"] = s.MaxBallistics
		fields["capture_mean"] = s.Capture.Mean
		fields["capture_max"] = s.Capture.Max
	}

	return influxdb2_write.NewPoint(Measurement, tags, fields, r.At)
}

// WriteReport appends one line.
func (l *LineFile) WriteReport(r monitor.Report) error {
	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(Point(r, l.mission), time.Nanosecond), "\n") + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("stats file closed")
	}
	if _, err := l.gz.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing stats line: %w", err)
	}
	l.points++
	return nil
}

// Close flushes the gzip stream and closes the file.
func (l *LineFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	err := errors.Join(l.gz.Close(), l.file.Close())
	if err != nil {
		l.logger.Error().Err(err).Str("path", l.path).Msg("Error closing stats file")
		return err
	}
	l.logger.Info().Str("path", l.path).Int("points", l.points).Msg("Stats file written")
	return nil
}

// Path returns the file location.
func (l *LineFile) Path() string {
	return l.path
}
