package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/tetrad/internal/config"
	"github.com/OCAP2/tetrad/internal/dispatcher"
	"github.com/OCAP2/tetrad/internal/host"
	"github.com/OCAP2/tetrad/internal/session"
)

// Host commands.
const (
	cmdStart   = ":START:"
	cmdFrame   = ":FRAME:"
	cmdStop    = ":STOP:"
	cmdVersion = ":VERSION:"
)

var (
	errSessionActive = errors.New("a session is already running")
	errNoSession     = errors.New("no session running")
)

// app holds at most one live session and answers host commands for it.
// Handlers run on the host goroutine.
type app struct {
	cfg    config.SessionConfig
	host   host.Host
	deps   session.Dependencies
	logger *slog.Logger

	current *session.Session
	frame   atomic.Uint64
}

func newApp(cfg config.SessionConfig, h host.Host, deps session.Dependencies) *app {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &app{cfg: cfg, host: h, deps: deps, logger: logger}
}

func (a *app) register(d *dispatcher.Dispatcher) {
	d.Register(cmdStart, a.start, dispatcher.Logged())
	d.Register(cmdFrame, a.onFrame)
	d.Register(cmdStop, a.stop, dispatcher.Logged())
	d.Register(cmdVersion, func(dispatcher.Event) (any, error) {
		return Version, nil
	})
}

func (a *app) start(dispatcher.Event) (any, error) {
	if a.current != nil && !a.current.Stopped() {
		return nil, errSessionActive
	}
	s, err := session.Start(a.cfg, a.host, a.deps)
	if err != nil {
		return nil, err
	}
	a.current = s
	a.frame.Store(0)
	return s.ID(), nil
}

func (a *app) onFrame(dispatcher.Event) (any, error) {
	if a.current == nil || a.current.Stopped() {
		return nil, errNoSession
	}
	a.current.OnFrame()
	f := a.current.Frame()
	a.frame.Store(f)
	return f, nil
}

func (a *app) stop(dispatcher.Event) (any, error) {
	if a.current == nil {
		return nil, errNoSession
	}
	err := a.current.Stop()
	for _, st := range a.current.Recorder() {
		a.logger.Info("Stream summary", "stream", st.Name, "path", st.Path, "rows", st.Rows,
			"failures", st.Failures, "degraded", st.Degraded)
	}
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", a.current.ID(), err)
	}
	return a.current.ID(), nil
}

// contextAttrs tags diagnostic log records with the last emitted frame.
func (a *app) contextAttrs() []slog.Attr {
	return []slog.Attr{slog.Uint64("frame", a.frame.Load())}
}
