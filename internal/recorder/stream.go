package recorder

import (
	"context"
	"log/slog"

	"github.com/OCAP2/tetrad/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// failureLogEvery limits how often repeated write failures are logged.
const failureLogEvery = 100

// stream wraps one sink with failure accounting. A stream whose sink keeps
// failing is switched to storage.Nop when maxConsecutive is set.
type stream struct {
	name           string
	path           string
	sink           storage.Sink
	logger         *slog.Logger
	maxConsecutive int

	rows        int64
	failures    int64
	consecutive int
	degraded    bool

	attr    metric.MeasurementOption
	written metric.Int64Counter
	failed  metric.Int64Counter
}

func newStream(name string, sink storage.Sink, logger *slog.Logger, maxConsecutive int, written, failed metric.Int64Counter) *stream {
	return &stream{
		name:           name,
		path:           sink.Path(),
		sink:           sink,
		logger:         logger,
		maxConsecutive: maxConsecutive,
		attr:           metric.WithAttributes(attribute.String("stream", name)),
		written:        written,
		failed:         failed,
	}
}

func (s *stream) write(record []string) {
	ctx := context.Background()
	if err := s.sink.Write(record); err != nil {
		s.failures++
		s.consecutive++
		s.failed.Add(ctx, 1, s.attr)
		if s.failures == 1 || s.failures%failureLogEvery == 0 {
			s.logger.Warn("Failed to write row", "stream", s.name, "failures", s.failures, "error", err)
		}
		if s.maxConsecutive > 0 && s.consecutive >= s.maxConsecutive {
			s.degrade()
		}
		return
	}
	s.rows++
	s.consecutive = 0
	s.written.Add(ctx, 1, s.attr)
}

func (s *stream) degrade() {
	s.logger.Error("Disabling stream after repeated write failures",
		"stream", s.name,
		"consecutive", s.consecutive,
		"path", s.path)
	if err := s.sink.Close(); err != nil {
		s.logger.Debug("Closing degraded sink failed", "stream", s.name, "error", err)
	}
	s.sink = storage.Nop{}
	s.degraded = true
}
