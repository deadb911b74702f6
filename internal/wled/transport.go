package wled

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Controller HTTP endpoints
const (
	PathState   = "/json/state"
	PathFull    = "/json"
	PathInfo    = "/json/info"
	PathPresets = "/presets.json"
)

// Origin identifies which read or write produced a completion, so the
// single response handler can dispatch by request type.
type Origin int

const (
	OriginState Origin = iota
	OriginFull
	OriginInfo
	OriginPresets
	OriginCommand
)

// String returns a human-readable name for the origin.
func (o Origin) String() string {
	switch o {
	case OriginState:
		return "state"
	case OriginFull:
		return "full"
	case OriginInfo:
		return "info"
	case OriginPresets:
		return "presets"
	case OriginCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Request is one HTTP exchange with the controller. The body is
// self-contained (full target values, never a delta) so re-submission after
// lost responses cannot double-apply anything.
type Request struct {
	ID     string // correlation token, assigned on first send
	Origin Origin
	Method string
	Path   string
	Body   []byte

	// Retry is attached by the retry coordinator for commands with a
	// retry budget; nil otherwise.
	Retry *RetryContext
}

// Completion reports the outcome of a request. Failures (timeout,
// connection refused, non-2xx) arrive through the same channel as
// successes, tagged with Err.
type Completion struct {
	Request *Request
	Status  int
	Payload []byte
	Err     error
}

// newRequestID builds a correlation token: a fresh uuid plus the request
// path, so logs can be traced back to their origin at a glance.
func newRequestID(path string) string {
	return uuid.NewString() + ":" + path
}

// Transport issues asynchronous requests against the controller and
// reports every outcome to a single completion callback. Nothing calls
// the network synchronously.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	onComplete func(Completion)

	queue chan *Request

	mu          sync.RWMutex
	lastContact time.Time
}

// NewTransport creates a transport for the controller at address.
func NewTransport(address string, timeout time.Duration, rateLimitRPS float64, onComplete func(Completion)) *Transport {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if rateLimitRPS <= 0 {
		rateLimitRPS = 10.0
	}

	return &Transport{
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
		onComplete: onComplete,
		queue:      make(chan *Request, 32),
	}
}

// Run processes queued requests until the context is cancelled.
func (t *Transport) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.queue:
			t.execute(ctx, req)
		}
	}
}

// Send enqueues a request. It never blocks: if the queue is full the
// request completes immediately with an error.
func (t *Transport) Send(req *Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	select {
	case t.queue <- req:
	default:
		log.Warn().
			Str("request_id", req.ID).
			Str("path", req.Path).
			Msg("Transport queue full, failing request")
		t.onComplete(Completion{Request: req, Err: fmt.Errorf("transport queue full")})
	}
}

// LastContact returns the time of the last successful exchange.
func (t *Transport) LastContact() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastContact
}

func (t *Transport) execute(ctx context.Context, req *Request) {
	if err := t.limiter.Wait(ctx); err != nil {
		return
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		t.onComplete(Completion{Request: req, Err: err})
		return
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().
			Err(err).
			Str("request_id", req.ID).
			Str("path", req.Path).
			Msg("Request failed")
		t.onComplete(Completion{Request: req, Err: err})
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.onComplete(Completion{Request: req, Err: err})
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.onComplete(Completion{
			Request: req,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		})
		return
	}

	// Only a successful exchange counts as contact.
	t.mu.Lock()
	t.lastContact = time.Now()
	t.mu.Unlock()

	t.onComplete(Completion{Request: req, Status: resp.StatusCode, Payload: payload})
}
