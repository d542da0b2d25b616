package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrFanOutClosed is returned when registering on a closed FanOut.
	ErrFanOutClosed = errors.New("fan-out closed")
	// ErrDuplicateConsumer is returned when a consumer name is registered twice.
	ErrDuplicateConsumer = errors.New("consumer already registered")
)

// OutletStats reports delivery counters for one consumer.
type OutletStats struct {
	Consumer string
	Queued   int
	Sent     uint64
	Dropped  uint64
}

type outlet[T any] struct {
	name string
	ch   *Unbounded[T]
	attr attribute.KeyValue
	sent atomic.Uint64
}

// FanOut delivers every broadcast value to each registered consumer,
// in broadcast order per consumer. Broadcast never blocks.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outlets []*outlet[T]
	closed  bool

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	queueReg  metric.Registration
	sent      metric.Int64Counter
	dropped   metric.Int64Counter
}

// NewFanOut creates a FanOut. Uses the global OTel meter for metrics
// (no-op if not configured).
func NewFanOut[T any]() (*FanOut[T], error) {
	f := &FanOut[T]{}
	m := meter()

	var err error

	f.queueSize, err = m.Int64ObservableGauge(
		"channel.queue.size",
		metric.WithDescription("Messages waiting for a consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	f.queueReg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			f.mu.RLock()
			defer f.mu.RUnlock()
			for _, out := range f.outlets {
				o.ObserveInt64(f.queueSize, int64(out.ch.Len()), metric.WithAttributes(out.attr))
			}
			return nil
		},
		f.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	f.sent, err = m.Int64Counter(
		"channel.messages.sent",
		metric.WithDescription("Messages handed to a consumer queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}

	f.dropped, err = m.Int64Counter(
		"channel.messages.dropped",
		metric.WithDescription("Messages discarded because the consumer detached"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return f, nil
}

// Register adds a consumer and returns its exclusive receiving end.
func (f *FanOut[T]) Register(name string) (Receiver[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFanOutClosed
	}
	for _, out := range f.outlets {
		if out.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateConsumer, name)
		}
	}

	ch := NewUnbounded[T]()
	f.outlets = append(f.outlets, &outlet[T]{
		name: name,
		ch:   ch,
		attr: attribute.String("consumer", name),
	})
	return ch, nil
}

// Broadcast sends v to every consumer. Detached consumers are skipped.
func (f *FanOut[T]) Broadcast(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ctx := context.Background()
	for _, out := range f.outlets {
		if out.ch.Offer(v) {
			out.sent.Add(1)
			f.sent.Add(ctx, 1, metric.WithAttributes(out.attr))
		} else {
			f.dropped.Add(ctx, 1, metric.WithAttributes(out.attr))
		}
	}
}

// Close ends every consumer stream and stops reporting queue sizes.
// Safe to call more than once.
func (f *FanOut[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, out := range f.outlets {
		out.ch.Close()
	}
	if f.queueReg != nil {
		_ = f.queueReg.Unregister()
	}
}

// Closed reports whether Close has been called.
func (f *FanOut[T]) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Stats returns per-consumer delivery counters in registration order.
func (f *FanOut[T]) Stats() []OutletStats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	stats := make([]OutletStats, 0, len(f.outlets))
	for _, out := range f.outlets {
		stats = append(stats, OutletStats{
			Consumer: out.name,
			Queued:   out.ch.Len(),
			Sent:     out.sent.Load(),
			Dropped:  out.ch.Dropped(),
		})
	}
	return stats
}
