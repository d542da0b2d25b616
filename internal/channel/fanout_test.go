package channel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestFanOut(t *testing.T) *FanOut[int] {
	t.Helper()
	f, err := NewFanOut[int]()
	require.NoError(t, err)
	return f
}

func TestFanOut_EveryConsumerGetsEveryMessage(t *testing.T) {
	f := newTestFanOut(t)

	a, err := f.Register("recorder")
	require.NoError(t, err)
	b, err := f.Register("monitor")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]int, 2)
	for i, r := range []Receiver[int]{a, b} {
		wg.Add(1)
		go func(i int, r Receiver[int]) {
			defer wg.Done()
			results[i] = drain[int](r)
		}(i, r)
	}

	for i := 1; i <= 100; i++ {
		f.Broadcast(i)
	}
	f.Close()
	wg.Wait()

	for _, got := range results {
		require.Len(t, got, 100)
		for i, v := range got {
			assert.Equal(t, i+1, v)
		}
	}
}

func TestFanOut_RegisterErrors(t *testing.T) {
	f := newTestFanOut(t)

	_, err := f.Register("recorder")
	require.NoError(t, err)

	_, err = f.Register("recorder")
	assert.ErrorIs(t, err, ErrDuplicateConsumer)

	f.Close()
	f.Close()
	assert.True(t, f.Closed())

	_, err = f.Register("late")
	assert.ErrorIs(t, err, ErrFanOutClosed)
}

func TestFanOut_DetachedConsumerDoesNotAffectOthers(t *testing.T) {
	f := newTestFanOut(t)

	dead, err := f.Register("dead")
	require.NoError(t, err)
	alive, err := f.Register("alive")
	require.NoError(t, err)

	dead.Detach()
	for i := 0; i < 10; i++ {
		f.Broadcast(i)
	}
	f.Close()

	assert.Len(t, drain[int](alive), 10)

	stats := f.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "dead", stats[0].Consumer)
	assert.Equal(t, uint64(0), stats[0].Sent)
	assert.Equal(t, uint64(10), stats[0].Dropped)
	assert.Equal(t, "alive", stats[1].Consumer)
	assert.Equal(t, uint64(10), stats[1].Sent)
	assert.Equal(t, uint64(0), stats[1].Dropped)
}

func TestFanOut_BroadcastWithoutConsumers(t *testing.T) {
	f := newTestFanOut(t)
	assert.NotPanics(t, func() { f.Broadcast(1) })
	assert.Empty(t, f.Stats())
}

// queueSizePoints collects once and returns the channel.queue.size points.
func queueSizePoints(t *testing.T, r *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	var points []metricdata.DataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "channel.queue.size" {
				continue
			}
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok {
				points = append(points, g.DataPoints...)
			}
		}
	}
	return points
}

func TestFanOut_CloseStopsQueueGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader(sdkmetric.WithTemporalitySelector(
		func(sdkmetric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality },
	))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	f := newTestFanOut(t)
	_, err := f.Register("recorder")
	require.NoError(t, err)
	f.Broadcast(1)
	f.Broadcast(2)

	points := queueSizePoints(t, reader)
	require.Len(t, points, 1)
	// the pump may already hold the first message
	assert.Contains(t, []int64{1, 2}, points[0].Value)
	name, ok := points[0].Attributes.Value("consumer")
	require.True(t, ok)
	assert.Equal(t, "recorder", name.AsString())

	f.Close()
	f.Close()
	assert.Empty(t, queueSizePoints(t, reader))
}
