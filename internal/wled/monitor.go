package wled

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obeisser/wledd/internal/timers"
)

// ConnState is the connection health of the controller. It is driven only
// by transport outcomes and the monitor's timer, never set by command code.
type ConnState int

const (
	ConnUnknown ConnState = iota
	ConnInitializing
	ConnConnected
	ConnError
	ConnDisconnected
)

// String returns a human-readable name for the connection state.
func (s ConnState) String() string {
	switch s {
	case ConnUnknown:
		return "unknown"
	case ConnInitializing:
		return "initializing"
	case ConnConnected:
		return "connected"
	case ConnError:
		return "error"
	case ConnDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

// Monitor tracks connection health with a recurring liveness check. It is
// the only component on an unconditional repeating timer. Transitions happen
// on the engine's dispatch goroutine; State is safe to read from anywhere.
type Monitor struct {
	interval    time.Duration
	runner      *timers.Runner
	lastContact func() time.Time
	probe       func()
	onChange    func(ConnState)

	state atomic.Int32
}

// NewMonitor creates a monitor. probe is invoked to re-establish contact
// when the connection has gone stale; onChange observes state transitions.
func NewMonitor(interval time.Duration, runner *timers.Runner, lastContact func() time.Time, probe func(), onChange func(ConnState)) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		interval:    interval,
		runner:      runner,
		lastContact: lastContact,
		probe:       probe,
		onChange:    onChange,
	}
}

// Start begins the recurring liveness check. It reschedules forever until
// the runner is closed.
func (m *Monitor) Start() {
	m.runner.Every("health_check", m.interval, m.Check)
	log.Info().Dur("interval", m.interval).Msg("Connection health monitor started")
}

// State returns the current connection state.
func (m *Monitor) State() ConnState {
	return ConnState(m.state.Load())
}

// Check evaluates staleness: with no successful contact for twice the
// check interval, the connection is considered lost and a probe is issued.
func (m *Monitor) Check() {
	last := m.lastContact()
	if last.IsZero() {
		if m.State() == ConnInitializing {
			m.probe()
		}
		return
	}

	stale := time.Since(last) > 2*m.interval
	switch m.State() {
	case ConnConnected, ConnError:
		if stale {
			m.setState(ConnDisconnected)
			m.probe()
		}
	case ConnDisconnected:
		// Keep probing until contact resumes.
		m.probe()
	}
}

// OnRequestIssued marks the first outbound request.
func (m *Monitor) OnRequestIssued() {
	if m.State() == ConnUnknown {
		m.setState(ConnInitializing)
	}
}

// OnSuccess records a successful exchange.
func (m *Monitor) OnSuccess() {
	if m.State() != ConnConnected {
		m.setState(ConnConnected)
	}
}

// OnTransportError records a failed exchange. A failure while connected
// degrades immediately, independent of the staleness timer.
func (m *Monitor) OnTransportError() {
	if m.State() == ConnConnected {
		m.setState(ConnError)
	}
}

func (m *Monitor) setState(next ConnState) {
	prev := m.State()
	if prev == next {
		return
	}
	log.Info().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("Connection state changed")
	m.state.Store(int32(next))
	if m.onChange != nil {
		m.onChange(next)
	}
}
