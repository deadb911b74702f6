package wled

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/obeisser/wledd/internal/timers"
)

type recordingSender struct {
	mu    sync.Mutex
	sends []*Request
}

func (s *recordingSender) Send(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, req)
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

func (s *recordingSender) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("sends = %d after deadline, want %d", s.count(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func commandRequest() *Request {
	return &Request{
		ID:     newRequestID(PathState),
		Origin: OriginCommand,
		Method: http.MethodPost,
		Path:   PathState,
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	sender := &recordingSender{}
	runner := timers.NewRunner(func(fn func()) { fn() })
	defer runner.Close()

	var mu sync.Mutex
	retried := 0
	permanent := 0
	coord := NewRetryCoordinator(sender, runner, true, 3, time.Millisecond,
		func(req *Request, attempt int, err error) {
			mu.Lock()
			retried++
			mu.Unlock()
		},
		func(req *Request, err error) {
			mu.Lock()
			permanent++
			mu.Unlock()
		})

	req := commandRequest()
	coord.Attach(req)
	failure := Completion{Request: req, Err: errors.New("connection refused")}

	for i := 1; i <= 3; i++ {
		if !coord.HandleFailure(failure) {
			t.Fatalf("HandleFailure() attempt %d = false, want retry", i)
		}
		sender.waitFor(t, i)
	}

	// Budget of 3 is spent; the fourth failure is permanent.
	if coord.HandleFailure(failure) {
		t.Fatal("HandleFailure() after exhausted budget = true, want permanent failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if retried != 3 {
		t.Errorf("retry callbacks = %d, want 3", retried)
	}
	if permanent != 1 {
		t.Errorf("permanent failure callbacks = %d, want 1", permanent)
	}
	if sender.count() != 3 {
		t.Errorf("re-sends = %d, want exactly 3", sender.count())
	}
	if req.Retry != nil {
		t.Error("retry context not cleared after permanent failure")
	}
}

func TestRetryDisabled(t *testing.T) {
	sender := &recordingSender{}
	runner := timers.NewRunner(func(fn func()) { fn() })
	defer runner.Close()

	coord := NewRetryCoordinator(sender, runner, false, 3, time.Millisecond, nil, nil)
	req := commandRequest()
	coord.Attach(req)

	if req.Retry != nil {
		t.Fatal("Attach() gave a retry context with retries disabled")
	}
	if coord.HandleFailure(Completion{Request: req, Err: errors.New("boom")}) {
		t.Error("HandleFailure() = true for a request without retry context")
	}
}

// Polls and state reads never get a retry budget; the poll cycle itself is
// the retry.
func TestRetryAttachOnlyCommands(t *testing.T) {
	coord := NewRetryCoordinator(&recordingSender{}, timers.NewRunner(func(fn func()) { fn() }), true, 3, time.Millisecond, nil, nil)

	for _, origin := range []Origin{OriginState, OriginFull, OriginInfo, OriginPresets} {
		req := &Request{ID: "x", Origin: origin, Path: PathState}
		coord.Attach(req)
		if req.Retry != nil {
			t.Errorf("Attach() gave origin %s a retry context", origin)
		}
	}

	req := commandRequest()
	coord.Attach(req)
	if req.Retry == nil {
		t.Fatal("Attach() gave command no retry context")
	}
	if req.Retry.MaxAttempts != 3 || req.Retry.Delay != time.Millisecond {
		t.Errorf("retry context = %+v, want max 3, delay 1ms", req.Retry)
	}
}

func TestRetryDefaults(t *testing.T) {
	coord := NewRetryCoordinator(&recordingSender{}, nil, true, 0, 0, nil, nil)
	req := commandRequest()
	coord.Attach(req)

	if req.Retry.MaxAttempts != 3 || req.Retry.Delay != 2*time.Second {
		t.Errorf("retry context = %+v, want defaults max 3, delay 2s", req.Retry)
	}
}
