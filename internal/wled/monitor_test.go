package wled

import (
	"testing"
	"time"
)

type monitorFixture struct {
	monitor     *Monitor
	lastContact time.Time
	probes      int
	transitions []ConnState
}

func newMonitorFixture(interval time.Duration) *monitorFixture {
	f := &monitorFixture{}
	f.monitor = NewMonitor(interval, nil,
		func() time.Time { return f.lastContact },
		func() { f.probes++ },
		func(s ConnState) { f.transitions = append(f.transitions, s) },
	)
	return f
}

func TestMonitorInitialization(t *testing.T) {
	f := newMonitorFixture(30 * time.Second)

	if f.monitor.State() != ConnUnknown {
		t.Fatalf("initial state = %s, want unknown", f.monitor.State())
	}

	f.monitor.OnRequestIssued()
	if f.monitor.State() != ConnInitializing {
		t.Errorf("state after first request = %s, want initializing", f.monitor.State())
	}

	// Further requests do not regress the state machine.
	f.monitor.OnSuccess()
	f.monitor.OnRequestIssued()
	if f.monitor.State() != ConnConnected {
		t.Errorf("state after success = %s, want connected", f.monitor.State())
	}
}

func TestMonitorErrorAndRecovery(t *testing.T) {
	f := newMonitorFixture(30 * time.Second)
	f.monitor.OnRequestIssued()
	f.monitor.OnSuccess()

	f.monitor.OnTransportError()
	if f.monitor.State() != ConnError {
		t.Fatalf("state after transport error = %s, want error", f.monitor.State())
	}

	// A later success restores connected without passing through the timer.
	f.monitor.OnSuccess()
	if f.monitor.State() != ConnConnected {
		t.Errorf("state after recovery = %s, want connected", f.monitor.State())
	}

	want := []ConnState{ConnInitializing, ConnConnected, ConnError, ConnConnected}
	if len(f.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", f.transitions, want)
	}
	for i := range want {
		if f.transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, f.transitions[i], want[i])
		}
	}
}

// A transport error before any success never reports error: failures during
// initialization keep the initializing state.
func TestMonitorErrorOnlyFromConnected(t *testing.T) {
	f := newMonitorFixture(30 * time.Second)
	f.monitor.OnRequestIssued()

	f.monitor.OnTransportError()
	if f.monitor.State() != ConnInitializing {
		t.Errorf("state = %s, want initializing", f.monitor.State())
	}
}

func TestMonitorStaleness(t *testing.T) {
	f := newMonitorFixture(30 * time.Second)
	f.monitor.OnRequestIssued()
	f.monitor.OnSuccess()

	// Fresh contact: no transition, no probe.
	f.lastContact = time.Now()
	f.monitor.Check()
	if f.monitor.State() != ConnConnected || f.probes != 0 {
		t.Fatalf("state = %s, probes = %d after fresh check", f.monitor.State(), f.probes)
	}

	// Contact older than twice the interval: disconnected plus a probe.
	f.lastContact = time.Now().Add(-61 * time.Second)
	f.monitor.Check()
	if f.monitor.State() != ConnDisconnected {
		t.Fatalf("state = %s, want disconnected", f.monitor.State())
	}
	if f.probes != 1 {
		t.Errorf("probes = %d, want 1", f.probes)
	}

	// While disconnected every check keeps probing.
	f.monitor.Check()
	f.monitor.Check()
	if f.probes != 3 {
		t.Errorf("probes = %d, want 3", f.probes)
	}

	f.monitor.OnSuccess()
	if f.monitor.State() != ConnConnected {
		t.Errorf("state after probe success = %s, want connected", f.monitor.State())
	}
}

func TestMonitorProbeDuringInitialization(t *testing.T) {
	f := newMonitorFixture(30 * time.Second)
	f.monitor.OnRequestIssued()

	// No contact yet: the check re-probes instead of declaring staleness.
	f.monitor.Check()
	if f.probes != 1 {
		t.Errorf("probes = %d, want 1", f.probes)
	}
	if f.monitor.State() != ConnInitializing {
		t.Errorf("state = %s, want initializing", f.monitor.State())
	}
}
