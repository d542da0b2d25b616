// Package session wires the producer, the fan-out and every consumer for
// one recording, from the host's start call to its stop call.
package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/tetrad/internal/channel"
	"github.com/OCAP2/tetrad/internal/config"
	"github.com/OCAP2/tetrad/internal/database"
	"github.com/OCAP2/tetrad/internal/host"
	"github.com/OCAP2/tetrad/internal/influx"
	"github.com/OCAP2/tetrad/internal/monitor"
	"github.com/OCAP2/tetrad/internal/producer"
	"github.com/OCAP2/tetrad/internal/protocol"
	"github.com/OCAP2/tetrad/internal/recorder"
	"github.com/OCAP2/tetrad/internal/status"
	"github.com/OCAP2/tetrad/internal/storage"
	"github.com/OCAP2/tetrad/internal/util"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
)

// UnknownMission names sessions whose host could not report a mission.
const UnknownMission = "unknown"

// StatsDir holds the monitor's line protocol files below the log root.
const StatsDir = "stats"

// Consumer is an extra frame consumer run alongside the built-in ones.
type Consumer struct {
	Name string
	Run  func(rx channel.Receiver[streaming.Message]) error
}

// Dependencies holds everything a session borrows from its caller.
type Dependencies struct {
	Logger    *slog.Logger
	Console   monitor.Logger
	Diag      zerolog.Logger
	Consumers []Consumer
	Now       func() time.Time
	Policy    protocol.Policy
	OpenSink  recorder.OpenFunc
}

// Session is one recording. OnFrame and Stop must be called from the host's
// goroutine.
type Session struct {
	id      string
	mission string
	started time.Time
	logger  *slog.Logger
	now     func() time.Time

	fan      *channel.FanOut[streaming.Message]
	producer *producer.Producer
	recorder *recorder.Recorder
	monitor  *monitor.Service
	group    errgroup.Group

	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

type runner struct {
	name string
	run  func(rx channel.Receiver[streaming.Message]) error
}

// Start opens every output and launches the consumers. Any failure before
// the consumers run is returned with everything already opened closed again.
func Start(cfg config.SessionConfig, h host.Host, deps Dependencies) (s *Session, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	started := deps.Now()
	id := uuid.NewString()
	mission := missionName(h, deps.Logger)
	logger := deps.Logger.With("session", id, "mission", mission)

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				logger.Error("Cleanup after failed start", "error", cerr)
			}
		}
		if deps.Console != nil {
			deps.Console.Error("Session start failed", "mission", mission, "error", err)
		}
	}()

	rec, err := recorder.Open(cfg, mission, started, recorder.Options{
		Logger: logger,
		Open:   deps.OpenSink,
		Guard:  protocol.NewGuard(recorder.Name, deps.Policy, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("opening recorder: %w", err)
	}
	closers = append(closers, rec.Close)

	runners := []runner{{name: recorder.Name, run: rec.Run}}

	var mon *monitor.Service
	if cfg.Monitor.Enabled {
		sinks, err := openReportSinks(cfg, id, mission, started, deps.Diag)
		for _, sink := range sinks {
			closers = append(closers, sink.Close)
		}
		if err != nil {
			return nil, err
		}
		mon, err = monitor.NewService(monitor.Config{
			Interval:       cfg.Monitor.ReportInterval,
			StallThreshold: cfg.Monitor.StallThreshold,
			Session:        id,
		}, monitor.Dependencies{
			Console: deps.Console,
			Sinks:   sinks,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating monitor: %w", err)
		}
		runners = append(runners, runner{name: monitor.Name, run: mon.Run})
	}

	if cfg.Status.Enabled {
		board := status.New(filepath.Join(storage.LogRoot(cfg.WriteDir), status.FileName), mission, cfg.Status.Interval, logger)
		runners = append(runners, runner{name: status.Name, run: board.Run})
	}

	for _, c := range deps.Consumers {
		runners = append(runners, runner{name: c.Name, run: c.Run})
	}

	fan, err := channel.NewFanOut[streaming.Message]()
	if err != nil {
		return nil, fmt.Errorf("creating fan-out: %w", err)
	}
	receivers := make([]channel.Receiver[streaming.Message], len(runners))
	for i, r := range runners {
		if receivers[i], err = fan.Register(r.name); err != nil {
			return nil, fmt.Errorf("registering %s: %w", r.name, err)
		}
	}

	prod, err := producer.New(h, fan, logger,
		producer.WithClock(deps.Now),
		producer.WithGuard(protocol.NewGuard("producer", deps.Policy, logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	s = &Session{
		id:       id,
		mission:  mission,
		started:  started,
		logger:   logger,
		now:      deps.Now,
		fan:      fan,
		producer: prod,
		recorder: rec,
		monitor:  mon,
	}
	for i, r := range runners {
		rx, name, run := receivers[i], r.name, r.run
		s.group.Go(func() error {
			return runConsumer(name, rx, run)
		})
	}

	logger.Info("Session started", "consumers", len(runners), "write_dir", cfg.WriteDir)
	return s, nil
}

// runConsumer runs one consumer to completion. Whatever way it ends, its
// receiver is detached so later broadcasts to it are dropped. A panic becomes
// the consumer's error, except a protocol violation under the Panic policy.
func runConsumer(name string, rx channel.Receiver[streaming.Message], run func(channel.Receiver[streaming.Message]) error) (err error) {
	defer rx.Detach()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*protocol.Violation); ok {
			panic(v)
		}
		err = fmt.Errorf("%s: panic: %v", name, r)
	}()

	if err := run(rx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// missionName asks the host for the mission, falling back to UnknownMission.
func missionName(h host.Host, logger *slog.Logger) string {
	name, err := h.MissionName()
	if err != nil {
		logger.Warn("Could not read mission name", "error", err)
		return UnknownMission
	}
	name = strings.TrimSpace(util.TrimQuotes(name))
	if name == "" {
		return UnknownMission
	}
	return name
}

func openReportSinks(cfg config.SessionConfig, id, mission string, started time.Time, diag zerolog.Logger) ([]monitor.ReportSink, error) {
	root := storage.LogRoot(cfg.WriteDir)
	var sinks []monitor.ReportSink

	if cfg.Monitor.StatsFile {
		name := strings.TrimSuffix(storage.FileName(mission, started), storage.Extension) + influx.Extension
		lf, err := influx.Open(filepath.Join(root, StatsDir, name), mission, diag)
		if err != nil {
			return sinks, fmt.Errorf("opening stats file: %w", err)
		}
		sinks = append(sinks, lf)
	}

	if cfg.Monitor.Database {
		m := database.NewManager(diag)
		if err := m.Connect(filepath.Join(root, database.FileName)); err != nil {
			return append(sinks, closerSink{m.Close}), fmt.Errorf("opening report database: %w", err)
		}
		store, err := database.NewReportStore(m, id, mission, started)
		if err != nil {
			return append(sinks, closerSink{m.Close}), fmt.Errorf("opening report store: %w", err)
		}
		sinks = append(sinks, store)
	}

	return sinks, nil
}

// closerSink lets a bare Close join the cleanup list.
type closerSink struct{ close func() error }

func (closerSink) WriteReport(monitor.Report) error { return nil }
func (c closerSink) Close() error                   { return c.close() }

func (s *Session) ID() string         { return s.id }
func (s *Session) Mission() string    { return s.mission }
func (s *Session) Started() time.Time { return s.started }

// Frame is the number of frames emitted so far.
func (s *Session) Frame() uint64 { return s.producer.Frame() }

// OnFrame captures one host tick. It is a no-op after Stop.
func (s *Session) OnFrame() *core.FrameSnapshot {
	if s.stopped.Load() {
		return nil
	}
	return s.producer.OnFrame()
}

// Stop ends the session and waits for every consumer. Only the first call
// sends the stop message; later calls return the same result.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.fan.Broadcast(streaming.Stop())
		s.fan.Close()
		s.stopErr = s.group.Wait()

		for _, st := range s.fan.Stats() {
			if st.Dropped > 0 {
				s.logger.Warn("Consumer missed messages", "consumer", st.Consumer, "dropped", st.Dropped)
			}
		}
		attrs := []any{"frames", s.producer.Frame(), "duration", s.now().Sub(s.started).Round(time.Millisecond)}
		if s.stopErr != nil {
			s.logger.Error("Session stopped with errors", append(attrs, "error", s.stopErr)...)
		} else {
			s.logger.Info("Session stopped", attrs...)
		}
	})
	return s.stopErr
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool { return s.stopped.Load() }

// Recorder exposes per-stream statistics after Stop.
func (s *Session) Recorder() []recorder.StreamStats { return s.recorder.Stats() }

// Reports is the number of monitor reports emitted so far, 0 when the
// monitor is off.
func (s *Session) Reports() int {
	if s.monitor == nil {
		return 0
	}
	return s.monitor.Reports()
}

// Deliveries returns the fan-out counters per consumer.
func (s *Session) Deliveries() []channel.OutletStats { return s.fan.Stats() }
