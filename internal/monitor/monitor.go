// Package monitor is the rolling statistics consumer. It summarizes frame
// timing over windows of simulation time and reports to the operator.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/tetrad/internal/channel"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Name identifies the monitor among session consumers.
const Name = "monitor"

// Logger is the operator console the reports are written to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ReportSink receives every report in addition to the console.
type ReportSink interface {
	WriteReport(Report) error
	Close() error
}

// Config holds the window settings.
type Config struct {
	// Interval is the simulated time covered by one report, and the wall
	// time without frames after which a no-data report is emitted.
	Interval time.Duration
	// StallThreshold escalates a report to warning when even the fastest
	// frame in the window took at least this long.
	StallThreshold time.Duration
	Session        string
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Console Logger
	Sinks   []ReportSink
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service accumulates frames and emits reports. Run owns all state.
type Service struct {
	cfg  Config
	deps Dependencies

	window        Window
	started       bool
	lastSim       float64
	lastWall      float64
	lastFrame     uint64
	lastReportSim float64
	reports       atomic.Int64

	// OTEL metrics
	simDelta  metric.Float64Histogram
	wallDelta metric.Float64Histogram
	emitted   metric.Int64Counter
}

// NewService creates a monitor service.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor interval must be positive, got %s", cfg.Interval)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Service{cfg: cfg, deps: deps}

	m := meter()
	var err error

	s.simDelta, err = m.Float64Histogram(
		"monitor.frame.sim_delta",
		metric.WithDescription("Simulated time between consecutive frames"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sim delta histogram: %w", err)
	}

	s.wallDelta, err = m.Float64Histogram(
		"monitor.frame.wall_delta",
		metric.WithDescription("Wall clock time between consecutive frames"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wall delta histogram: %w", err)
	}

	s.emitted, err = m.Int64Counter(
		"monitor.reports",
		metric.WithDescription("Reports emitted by the rolling monitor"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reports counter: %w", err)
	}

	return s, nil
}

// Reports returns how many reports have been emitted. Safe to call while Run
// is active.
func (s *Service) Reports() int {
	return int(s.reports.Load())
}

// Run consumes messages until Stop. A Stop ends the loop at once; the
// partially filled window is discarded.
func (s *Service) Run(rx channel.Receiver[streaming.Message]) error {
	defer rx.Detach()
	defer s.closeSinks()

	if s.deps.Console != nil {
		s.deps.Console.Info(separator)
	}

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-rx.Receive():
			if !ok {
				s.deps.Logger.Debug("Monitor input closed")
				return nil
			}
			switch msg.Kind {
			case streaming.KindStop:
				s.deps.Logger.Debug("Monitor stopping", "frames", s.lastFrame, "reports", s.reports.Load())
				return nil
			case streaming.KindUpdate:
				s.Update(msg.Snapshot)
			}
		case <-timer.C:
			s.emit(s.noData())
		}
		resetTimer(timer, s.cfg.Interval)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Update pushes one frame and emits a report when the window spans the
// configured interval of simulated time.
func (s *Service) Update(snap *core.FrameSnapshot) {
	if snap == nil {
		return
	}
	if !s.started {
		// the first frame only anchors the deltas and the window
		s.started = true
		s.lastReportSim = snap.SimTime
		s.remember(snap)
		return
	}

	sample := Sample{
		Units:      snap.UnitCount(),
		Ballistics: snap.BallisticsCount(),
		SimDelta:   snap.SimTime - s.lastSim,
		WallDelta:  snap.WallTime - s.lastWall,
		Capture:    snap.CaptureDuration,
	}
	s.window.Push(sample)

	ctx := context.Background()
	s.simDelta.Record(ctx, sample.SimDelta)
	s.wallDelta.Record(ctx, sample.WallDelta)

	if snap.SimTime-s.lastReportSim >= s.cfg.Interval.Seconds() {
		if r, ok := s.statsReport(snap); ok {
			s.emit(r)
		}
		s.window.Reset()
		s.lastReportSim = snap.SimTime
	}

	s.remember(snap)
}

func (s *Service) remember(snap *core.FrameSnapshot) {
	s.lastSim = snap.SimTime
	s.lastWall = snap.WallTime
	s.lastFrame = snap.Frame
}

func (s *Service) statsReport(snap *core.FrameSnapshot) (Report, bool) {
	stats, ok := s.window.Summary()
	if !ok {
		return Report{}, false
	}
	level := LevelInfo
	if stats.SimDelta.Min >= s.cfg.StallThreshold.Seconds() {
		level = LevelWarn
	}
	return Report{
		Session:  s.cfg.Session,
		Kind:     KindStats,
		Level:    level,
		At:       s.deps.Now(),
		Frame:    snap.Frame,
		SimTime:  snap.SimTime,
		Interval: s.cfg.Interval,
		Stats:    stats,
	}, true
}

func (s *Service) noData() Report {
	return Report{
		Session:  s.cfg.Session,
		Kind:     KindNoData,
		Level:    LevelWarn,
		At:       s.deps.Now(),
		Frame:    s.lastFrame,
		SimTime:  s.lastSim,
		Interval: s.cfg.Interval,
	}
}

func (s *Service) emit(r Report) {
	s.reports.Add(1)
	s.emitted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(r.Kind))))

	if c := s.deps.Console; c != nil {
		text := r.Text()
		if r.Level == LevelWarn {
			c.Warn(text)
		} else {
			c.Info(text)
		}
	}

	for _, sink := range s.deps.Sinks {
		if err := sink.WriteReport(r); err != nil {
			s.deps.Logger.Error("Failed to write monitor report", "kind", r.Kind, "error", err)
		}
	}
}

func (s *Service) closeSinks() {
	for _, sink := range s.deps.Sinks {
		if err := sink.Close(); err != nil {
			s.deps.Logger.Error("Failed to close report sink", "error", err)
		}
	}
}
