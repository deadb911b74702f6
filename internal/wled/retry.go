package wled

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obeisser/wledd/internal/timers"
)

// RetryContext tracks the retry budget for one logical command. It is
// created when the command is first sent and discarded on success or
// budget exhaustion; it never outlives the command's resolution.
type RetryContext struct {
	Attempts    int
	MaxAttempts int
	Delay       time.Duration
}

// Sender re-issues requests; satisfied by Transport.
type Sender interface {
	Send(req *Request)
}

// RetryCoordinator re-submits failed commands on a fixed-delay schedule
// with a bounded budget.
//
// The delay is deliberately constant rather than exponential: commands are
// small idempotent writes to a LAN device, and backing off further only
// widens the window in which local state lags the strip.
type RetryCoordinator struct {
	sender  Sender
	runner  *timers.Runner
	enabled bool

	maxAttempts int
	delay       time.Duration

	// onRetry observes each scheduled re-submission; onPermanentFailure is
	// invoked after the budget is exhausted.
	onRetry            func(req *Request, attempt int, err error)
	onPermanentFailure func(req *Request, err error)
}

// NewRetryCoordinator creates a coordinator. maxAttempts and delay fall
// back to 3 and 2s when zero.
func NewRetryCoordinator(sender Sender, runner *timers.Runner, enabled bool, maxAttempts int, delay time.Duration, onRetry func(*Request, int, error), onPermanentFailure func(*Request, error)) *RetryCoordinator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &RetryCoordinator{
		sender:             sender,
		runner:             runner,
		enabled:            enabled,
		maxAttempts:        maxAttempts,
		delay:              delay,
		onRetry:            onRetry,
		onPermanentFailure: onPermanentFailure,
	}
}

// Attach gives a command request a fresh retry budget. No-op when retries
// are disabled.
func (c *RetryCoordinator) Attach(req *Request) {
	if !c.enabled || req.Origin != OriginCommand {
		return
	}
	req.Retry = &RetryContext{MaxAttempts: c.maxAttempts, Delay: c.delay}
}

// HandleFailure processes a failed completion. If the request carries a
// retry context with budget left, re-submission of the original request is
// scheduled and true is returned. Otherwise the failure is permanent.
func (c *RetryCoordinator) HandleFailure(comp Completion) bool {
	req := comp.Request
	if req.Retry == nil {
		return false
	}

	req.Retry.Attempts++
	if req.Retry.Attempts > req.Retry.MaxAttempts {
		log.Error().
			Err(comp.Err).
			Str("request_id", req.ID).
			Str("path", req.Path).
			Int("attempts", req.Retry.Attempts-1).
			Msg("Command failed permanently, retry budget exhausted")
		req.Retry = nil
		if c.onPermanentFailure != nil {
			c.onPermanentFailure(req, comp.Err)
		}
		return false
	}

	log.Warn().
		Err(comp.Err).
		Str("request_id", req.ID).
		Str("path", req.Path).
		Int("attempt", req.Retry.Attempts).
		Int("max_attempts", req.Retry.MaxAttempts).
		Dur("delay", req.Retry.Delay).
		Msg("Command failed, scheduling retry")

	if c.onRetry != nil {
		c.onRetry(req, req.Retry.Attempts, comp.Err)
	}

	// The original request is re-sent as-is; payloads are self-contained
	// so replays cannot double-apply.
	c.runner.After("retry:"+req.ID, req.Retry.Delay, func() {
		c.sender.Send(req)
	})
	return true
}
