// Package producer turns the host's per-frame callback into snapshots.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/tetrad/internal/host"
	"github.com/OCAP2/tetrad/internal/parser"
	"github.com/OCAP2/tetrad/internal/protocol"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Skip reasons recorded on the frames.skipped counter.
const (
	skipPaused     = "paused"
	skipHostError  = "host_error"
	skipRegression = "time_regression"
	skipPanic      = "panic"
)

// Broadcaster delivers a message to every consumer without blocking.
type Broadcaster interface {
	Broadcast(streaming.Message)
}

// Option configures a Producer.
type Option func(*Producer)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Producer) {
		p.now = now
	}
}

// WithGuard replaces the default protocol guard.
func WithGuard(g *protocol.Guard) Option {
	return func(p *Producer) {
		p.guard = g
	}
}

// Producer builds one FrameSnapshot per unpaused host tick.
// OnFrame must be called from a single goroutine.
type Producer struct {
	host   host.Host
	parser *parser.Parser
	out    Broadcaster
	logger *slog.Logger
	guard  *protocol.Guard

	now   func() time.Time
	start time.Time

	frame   uint64
	lastSim float64

	// OTEL metrics
	emitted  metric.Int64Counter
	skipped  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a producer. The wall clock starts at the first call to New.
func New(h host.Host, out Broadcaster, logger *slog.Logger, opts ...Option) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		host:   h,
		parser: parser.NewParser(logger),
		out:    out,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = protocol.NewGuard("producer", 0, logger)
	}
	p.start = p.now()

	m := meter()
	var err error

	p.emitted, err = m.Int64Counter(
		"producer.frames.emitted",
		metric.WithDescription("Snapshots broadcast to consumers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	p.skipped, err = m.Int64Counter(
		"producer.frames.skipped",
		metric.WithDescription("Host ticks that produced no snapshot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	p.duration, err = m.Float64Histogram(
		"producer.capture.duration",
		metric.WithDescription("Time spent reading the host per frame"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating capture duration histogram: %w", err)
	}

	return p, nil
}

// Frame returns the number of the last emitted snapshot, 0 before the first.
func (p *Producer) Frame() uint64 {
	return p.frame
}

// OnFrame captures the current host state and broadcasts it.
// It returns the emitted snapshot, or nil when the tick was skipped.
// Errors and panics from the host are logged and never reach the caller.
func (p *Producer) OnFrame() (snap *core.FrameSnapshot) {
	began := p.now()
	wall := began.Sub(p.start).Seconds()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*protocol.Violation); ok {
			panic(v)
		}
		p.logger.Error("Recovered panic in frame capture", "frame", p.frame+1, "panic", r)
		p.skip(skipPanic)
		snap = nil
	}()

	paused, err := p.host.IsPaused()
	if err != nil {
		p.hostError("pause flag", err)
		return nil
	}
	if paused {
		p.logger.Debug("Host is paused")
		p.skip(skipPaused)
		return nil
	}

	simTime, err := p.host.ModelTime()
	if err != nil {
		p.hostError("model time", err)
		return nil
	}
	if p.frame > 0 && simTime < p.lastSim {
		_ = p.guard.Report(fmt.Errorf("%w: %.8f after %.8f", protocol.ErrTimeRegression, simTime, p.lastSim))
		p.skip(skipRegression)
		return nil
	}

	ballisticEntries, err := p.host.Ballistics()
	if err != nil {
		p.hostError("ballistics", err)
		return nil
	}
	unitEntries, err := p.host.Units()
	if err != nil {
		p.hostError("units", err)
		return nil
	}

	snap = &core.FrameSnapshot{
		Frame:      p.frame + 1,
		SimTime:    simTime,
		WallTime:   wall,
		Ballistics: p.parser.Objects(ballisticEntries),
		Units:      p.parser.Units(unitEntries),
	}
	snap.CaptureDuration = p.now().Sub(began)

	p.frame = snap.Frame
	p.lastSim = simTime
	p.out.Broadcast(streaming.Update(snap))

	ctx := context.Background()
	p.emitted.Add(ctx, 1)
	p.duration.Record(ctx, snap.CaptureDuration.Seconds())
	return snap
}

func (p *Producer) hostError(what string, err error) {
	p.logger.Warn("Skipping frame, host query failed", "query", what, "frame", p.frame+1, "error", err)
	p.skip(skipHostError)
}

func (p *Producer) skip(reason string) {
	p.skipped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
