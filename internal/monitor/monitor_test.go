package monitor

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/tetrad/internal/channel"
	"github.com/OCAP2/tetrad/pkg/core"
	"github.com/OCAP2/tetrad/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
}

// testConsole captures console output.
type testConsole struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *testConsole) add(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level, msg})
}

func (c *testConsole) Debug(msg string, _ ...any) { c.add("debug", msg) }
func (c *testConsole) Info(msg string, _ ...any)  { c.add("info", msg) }
func (c *testConsole) Warn(msg string, _ ...any)  { c.add("warn", msg) }
func (c *testConsole) Error(msg string, _ ...any) { c.add("error", msg) }

func (c *testConsole) snapshot() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logEntry(nil), c.entries...)
}

// reports returns entries other than the opening separator.
func (c *testConsole) reports() []logEntry {
	var out []logEntry
	for _, e := range c.snapshot() {
		if e.msg != separator {
			out = append(out, e)
		}
	}
	return out
}

type memorySink struct {
	mu      sync.Mutex
	reports []Report
	err     error
	closed  bool
}

func (m *memorySink) WriteReport(r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return m.err
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newTestService(t *testing.T, interval, stall time.Duration, sinks ...ReportSink) (*Service, *testConsole) {
	t.Helper()
	console := &testConsole{}
	s, err := NewService(Config{Interval: interval, StallThreshold: stall, Session: "s-1"}, Dependencies{
		Console: console,
		Sinks:   sinks,
	})
	require.NoError(t, err)
	return s, console
}

func frame(n uint64, sim, wall float64, units int) *core.FrameSnapshot {
	s := &core.FrameSnapshot{Frame: n, SimTime: sim, WallTime: wall, CaptureDuration: 100 * time.Microsecond}
	for i := 0; i < units; i++ {
		s.Units = append(s.Units, core.WorldUnit{})
	}
	return s
}

func TestNewService_RejectsZeroInterval(t *testing.T) {
	_, err := NewService(Config{}, Dependencies{})
	assert.Error(t, err)
}

func TestUpdate_ExactlyOneReportAtBoundary(t *testing.T) {
	sink := &memorySink{}
	s, console := newTestService(t, 5*time.Second, 100*time.Millisecond, sink)

	// 0.0 .. 5.0 in 0.5s steps
	for i := 0; i <= 10; i++ {
		s.Update(frame(uint64(i+1), float64(i)*0.5, float64(i)*0.5, i))
	}
	require.Len(t, sink.reports, 1)
	r := sink.reports[0]
	assert.Equal(t, KindStats, r.Kind)
	assert.Equal(t, 10, r.Stats.Frames)
	assert.Equal(t, uint64(11), r.Frame)
	assert.Equal(t, 10, r.Stats.MaxUnits)
	assert.InDelta(t, 2.0, r.Stats.FPS, 1e-9)
	assert.Equal(t, "s-1", r.Session)
	assert.Equal(t, 1, len(console.snapshot()), "report goes to the console")

	// the window starts over after the report
	s.Update(frame(12, 5.5, 5.5, 0))
	assert.Equal(t, 1, s.window.Len())
	assert.Len(t, sink.reports, 1)

	for i := 12; i <= 20; i++ {
		s.Update(frame(uint64(i+1), float64(i)*0.5, float64(i)*0.5, 0))
	}
	require.Len(t, sink.reports, 2)
	assert.Equal(t, 10, sink.reports[1].Stats.Frames)
	assert.Equal(t, 0, sink.reports[1].Stats.MaxUnits)
}

func TestUpdate_FirstFrameAnchorsWindow(t *testing.T) {
	sink := &memorySink{}
	s, _ := newTestService(t, 5*time.Second, 100*time.Millisecond, sink)

	// a session joined mid-mission must not report on its first frame
	s.Update(frame(1, 3600, 0, 0))
	assert.Empty(t, sink.reports)
	assert.Equal(t, 0, s.window.Len())

	s.Update(frame(2, 3600.016, 0.016, 0))
	assert.InDelta(t, 0.016, s.window.samples[0].SimDelta, 1e-9)
}

func TestUpdate_StallEscalatesLevel(t *testing.T) {
	tests := []struct {
		name  string
		step  float64
		stall time.Duration
		level Level
	}{
		{"fast frames", 0.016, 100 * time.Millisecond, LevelInfo},
		{"just below threshold", 0.099, 100 * time.Millisecond, LevelInfo},
		{"at threshold", 0.125, 125 * time.Millisecond, LevelWarn},
		{"slow frames", 0.25, 100 * time.Millisecond, LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			s, console := newTestService(t, time.Second, tt.stall, sink)

			n := uint64(1)
			for sim := 0.0; len(sink.reports) == 0; sim = float64(n-1) * tt.step {
				s.Update(frame(n, sim, sim, 1))
				n++
				require.Less(t, n, uint64(1000))
			}
			assert.Equal(t, tt.level, sink.reports[0].Level)
			assert.Equal(t, string(tt.level), console.reports()[0].level)
		})
	}
}

func TestRun_StopEmitsNoPartialReport(t *testing.T) {
	sink := &memorySink{}
	s, console := newTestService(t, time.Hour, 100*time.Millisecond, sink)

	ch := channel.NewUnbounded[streaming.Message]()
	for i := 0; i < 5; i++ {
		ch.Send(streaming.Update(frame(uint64(i+1), float64(i), float64(i), 1)))
	}
	ch.Send(streaming.Stop())

	require.NoError(t, s.Run(ch))
	assert.Empty(t, sink.reports)
	assert.Empty(t, console.reports())
	assert.True(t, sink.closed)
	assert.True(t, ch.Detached())
}

func TestRun_NoDataReport(t *testing.T) {
	sink := &memorySink{}
	s, console := newTestService(t, 30*time.Millisecond, 100*time.Millisecond, sink)

	ch := channel.NewUnbounded[streaming.Message]()
	ch.Send(streaming.Update(frame(1, 0, 0, 1)))

	done := make(chan error, 1)
	go func() { done <- s.Run(ch) }()

	// Reports is read while Run is still going
	require.Eventually(t, func() bool { return s.Reports() >= 2 }, 2*time.Second, 5*time.Millisecond)

	ch.Send(streaming.Stop())
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, r := range sink.reports {
		assert.Equal(t, KindNoData, r.Kind)
		assert.Equal(t, LevelWarn, r.Level)
		assert.Equal(t, uint64(1), r.Frame)
	}
	reports := console.reports()
	require.NotEmpty(t, reports)
	assert.Equal(t, "warn", reports[0].level)
	assert.Equal(t, fmt.Sprintf("No new frame in the last %s", 30*time.Millisecond), reports[0].msg)
}

func TestRun_SinkErrorDoesNotStopMonitor(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	ok := &memorySink{}
	s, _ := newTestService(t, time.Second, 100*time.Millisecond, failing, ok)

	ch := channel.NewUnbounded[streaming.Message]()
	for i := 0; i <= 4; i++ {
		ch.Send(streaming.Update(frame(uint64(i+1), float64(i)*0.5, float64(i)*0.5, 0)))
	}
	ch.Send(streaming.Stop())

	require.NoError(t, s.Run(ch))
	assert.Len(t, failing.reports, 2)
	assert.Len(t, ok.reports, 2)
	assert.Equal(t, 2, s.Reports())
}

func TestRun_ClosedInputEndsLoop(t *testing.T) {
	s, _ := newTestService(t, time.Hour, time.Second)
	ch := channel.NewUnbounded[streaming.Message]()
	ch.Close()
	assert.NoError(t, s.Run(ch))
}
