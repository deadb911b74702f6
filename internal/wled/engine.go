package wled

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obeisser/wledd/internal/timers"
)

// ErrNotReady is returned for commands issued before the first full
// snapshot has been parsed.
var ErrNotReady = errors.New("engine not initialized yet")

// ErrBusy is returned for commands issued while the dispatch queue is
// saturated.
var ErrBusy = errors.New("engine dispatch queue full")

// Phase is the engine's initialization phase.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseRefreshing
	PhaseReady
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseReady:
		return "ready"
	default:
		return "invalid"
	}
}

// CommandAudit observes the lifecycle of issued commands: first send, each
// retry, and budget exhaustion. Callbacks run on the dispatch goroutine and
// must not block.
type CommandAudit interface {
	CommandIssued(requestID, path string)
	CommandRetried(requestID, path string, attempt int, err error)
	CommandFailed(requestID, path string, err error)
}

// Options configures one engine instance.
type Options struct {
	Address        string
	TargetSegment  int
	TransitionTime time.Duration
	Timeout        time.Duration
	RateLimitRPS   float64

	RetryEnabled     bool
	RetryMaxAttempts int
	RetryDelay       time.Duration

	MonitorEnabled  bool
	MonitorInterval time.Duration

	PollInterval time.Duration
}

// Engine is the synchronization and command-resolution engine for one
// controller. All mutable state (catalogs, snapshot cache, published
// attributes, phase) is owned by a single dispatch goroutine; transport
// completions, timer callbacks and public commands are all delivered to it
// through one channel.
type Engine struct {
	opts Options

	transport *Transport
	retry     *RetryCoordinator
	monitor   *Monitor
	catalogs  *Catalogs
	sync      *Synchronizer
	builder   *Builder
	runner    *timers.Runner
	audit     CommandAudit

	dispatch chan func()
	phase    atomic.Int32

	// lastFullReqID identifies the newest outstanding full refresh; a
	// completion for an older one has been superseded and is ignored.
	lastFullReqID string
}

// NewEngine creates an engine publishing attribute updates to sink. audit
// may be nil when no command auditing is wanted.
func NewEngine(opts Options, sink Sink, audit CommandAudit) *Engine {
	e := &Engine{
		opts:     opts,
		catalogs: NewCatalogs(),
		dispatch: make(chan func(), 256),
		audit:    audit,
	}

	e.runner = timers.NewRunner(func(fn func()) { e.enqueue(fn) })
	e.transport = NewTransport(opts.Address, opts.Timeout, opts.RateLimitRPS, func(comp Completion) {
		e.enqueue(func() { e.handleCompletion(comp) })
	})
	e.retry = NewRetryCoordinator(e.transport, e.runner, opts.RetryEnabled, opts.RetryMaxAttempts, opts.RetryDelay,
		func(req *Request, attempt int, err error) {
			if e.audit != nil {
				e.audit.CommandRetried(req.ID, req.Path, attempt, err)
			}
		},
		func(req *Request, err error) {
			if e.audit != nil {
				e.audit.CommandFailed(req.ID, req.Path, err)
			}
		})
	e.monitor = NewMonitor(opts.MonitorInterval, e.runner, e.transport.LastContact,
		e.requestState,
		func(state ConnState) { e.sync.PublishConnectionState(state) })
	e.sync = NewSynchronizer(opts.TargetSegment, e.catalogs, sink, e.scheduleSelfHeal)
	e.builder = NewBuilder(e.catalogs)

	return e
}

// Phase returns the current initialization phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// Connection returns the current connection state.
func (e *Engine) Connection() ConnState {
	return e.monitor.State()
}

// Run starts the engine and blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	go e.transport.Run(ctx)

	if e.opts.MonitorEnabled {
		e.monitor.Start()
	}
	if e.opts.PollInterval > 0 {
		e.runner.Every("poll", e.opts.PollInterval, e.requestState)
	}

	e.enqueue(e.requestFull)

	log.Info().
		Str("address", e.opts.Address).
		Int("target_segment", e.opts.TargetSegment).
		Msg("Engine started")

	for {
		select {
		case <-ctx.Done():
			e.runner.Close()
			log.Info().Msg("Engine stopping")
			return nil
		case fn := <-e.dispatch:
			fn()
		}
	}
}

// enqueue delivers fn to the dispatch goroutine. Non-blocking: a full
// queue drops with a warning, like the event bus, and reports the drop.
func (e *Engine) enqueue(fn func()) bool {
	select {
	case e.dispatch <- fn:
		return true
	default:
		log.Warn().Msg("Engine dispatch queue full, dropping work")
		return false
	}
}

// do runs fn on the dispatch goroutine and waits for its result. Public
// commands use it so resolution errors reach the caller before any network
// call; the network itself is never awaited. A saturated queue fails fast
// with ErrBusy rather than parking the caller. Must not be called from the
// dispatch goroutine.
func (e *Engine) do(fn func() error) error {
	done := make(chan error, 1)
	if !e.enqueue(func() { done <- fn() }) {
		return ErrBusy
	}
	return <-done
}

// --- read requests (dispatch goroutine only) ---

func (e *Engine) requestFull() {
	if e.Phase() == PhaseUninitialized {
		e.phase.Store(int32(PhaseRefreshing))
	}
	req := &Request{Origin: OriginFull, Method: http.MethodGet, Path: PathFull}
	e.send(req)
	e.lastFullReqID = req.ID
}

func (e *Engine) requestState() {
	req := &Request{Origin: OriginState, Method: http.MethodGet, Path: PathState}
	e.send(req)
}

func (e *Engine) requestPresets() {
	e.send(&Request{Origin: OriginPresets, Method: http.MethodGet, Path: PathPresets})
}

func (e *Engine) requestInfo() {
	e.send(&Request{Origin: OriginInfo, Method: http.MethodGet, Path: PathInfo})
}

func (e *Engine) send(req *Request) {
	if req.ID == "" {
		req.ID = newRequestID(req.Path)
	}
	e.monitor.OnRequestIssued()
	e.transport.Send(req)
}

// scheduleSelfHeal requests a recovery full refresh. At most one is
// pending at a time, which bounds the recovery loop.
func (e *Engine) scheduleSelfHeal() {
	if e.runner.Scheduled("self_heal") {
		return
	}
	e.runner.After("self_heal", time.Second, e.requestFull)
}

// --- completion handling (dispatch goroutine only) ---

func (e *Engine) handleCompletion(comp Completion) {
	if comp.Err != nil {
		e.monitor.OnTransportError()
		if e.retry.HandleFailure(comp) {
			return
		}
		log.Error().
			Err(comp.Err).
			Str("request_id", comp.Request.ID).
			Str("origin", comp.Request.Origin.String()).
			Str("path", comp.Request.Path).
			Msg("Request failed")
		return
	}

	e.monitor.OnSuccess()

	switch comp.Request.Origin {
	case OriginFull:
		e.handleFull(comp)
	case OriginState, OriginCommand:
		e.handleState(comp)
	case OriginInfo:
		e.handleInfo(comp)
	case OriginPresets:
		e.handlePresets(comp)
	}
}

func (e *Engine) handleFull(comp Completion) {
	if comp.Request.ID != e.lastFullReqID {
		log.Debug().Str("request_id", comp.Request.ID).Msg("Superseded full refresh, ignoring")
		return
	}

	var fs FullState
	if err := json.Unmarshal(comp.Payload, &fs); err != nil {
		log.Error().Err(err).Msg("Failed to parse full state, snapshot discarded")
		return
	}

	e.catalogs.SetEffects(fs.Effects)
	e.catalogs.SetPalettes(fs.Palettes)
	e.sync.ApplyInfo(&fs.Info)
	e.sync.Apply(&fs.State)

	if e.Phase() != PhaseReady {
		e.phase.Store(int32(PhaseReady))
		log.Info().
			Int("effects", len(fs.Effects)).
			Int("palettes", len(fs.Palettes)).
			Str("firmware", fs.Info.Version).
			Msg("Initialization complete")
	}
	// The presets file is a separate endpoint; fetch it now so names
	// resolve.
	e.requestPresets()
}

func (e *Engine) handleState(comp Completion) {
	if e.Phase() != PhaseReady {
		log.Warn().Str("origin", comp.Request.Origin.String()).Msg("State response before initialization, ignoring")
		return
	}

	var st State
	if err := json.Unmarshal(comp.Payload, &st); err != nil {
		log.Error().Err(err).Msg("Failed to parse state, snapshot discarded")
		return
	}
	e.sync.Apply(&st)
}

func (e *Engine) handleInfo(comp Completion) {
	var info Info
	if err := json.Unmarshal(comp.Payload, &info); err != nil {
		log.Error().Err(err).Msg("Failed to parse device info")
		return
	}
	e.sync.ApplyInfo(&info)
}

func (e *Engine) handlePresets(comp Completion) {
	var records map[string]PresetRecord
	if err := json.Unmarshal(comp.Payload, &records); err != nil {
		log.Error().Err(err).Msg("Failed to parse presets file")
		return
	}
	e.catalogs.SetPresets(records)
}

// --- public command surface ---

// Refresh requests a full snapshot (state, info, catalogs). This is the
// only command accepted before initialization completes.
func (e *Engine) Refresh() {
	e.enqueue(e.requestFull)
}

// Sync requests a state-only snapshot.
func (e *Engine) Sync() error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		e.requestState()
		return nil
	})
}

// On turns the target segment on.
func (e *Engine) On() error { return e.setPower(true) }

// Off turns the target segment off.
func (e *Engine) Off() error { return e.setPower(false) }

func (e *Engine) setPower(on bool) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{{ID: e.opts.TargetSegment, On: &on}}
		return e.sendCommand(cmd)
	})
}

// Toggle flips the target segment's power based on the last applied state.
func (e *Engine) Toggle() error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		on := true
		if seg := e.sync.CurrentSegment(); seg != nil {
			on = !seg.On
		}
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{{ID: e.opts.TargetSegment, On: &on}}
		return e.sendCommand(cmd)
	})
}

// SetBrightness sets the target segment level in percent (0-100).
func (e *Engine) SetBrightness(percent int) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		if err := checkRange("level", percent, 0, 100); err != nil {
			return err
		}
		bri := percent * 255 / 100
		on := percent > 0
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{{ID: e.opts.TargetSegment, On: &on, Bri: &bri}}
		return e.sendCommand(cmd)
	})
}

// SetEffect activates an effect by name or id, with optional speed and
// intensity (0-255 each).
func (e *Engine) SetEffect(tok Token, speed, intensity *int) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		fx, err := e.resolveLogged(tok, KindEffect)
		if err != nil {
			return err
		}
		seg := SegmentCommand{ID: e.opts.TargetSegment, Effect: &fx}
		if speed != nil {
			if err := checkRange("effect speed", *speed, 0, 255); err != nil {
				return err
			}
			seg.Speed = speed
		}
		if intensity != nil {
			if err := checkRange("effect intensity", *intensity, 0, 255); err != nil {
				return err
			}
			seg.Intensity = intensity
		}
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{seg}
		return e.sendCommand(cmd)
	})
}

// SetPalette activates a palette by name or id.
func (e *Engine) SetPalette(tok Token) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		pal, err := e.resolveLogged(tok, KindPalette)
		if err != nil {
			return err
		}
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{{ID: e.opts.TargetSegment, Palette: &pal}}
		return e.sendCommand(cmd)
	})
}

// SetEffectSpeed sets the relative effect speed (0-255).
func (e *Engine) SetEffectSpeed(v int) error {
	return e.segmentScalar("effect speed", v, func(seg *SegmentCommand, p *int) { seg.Speed = p })
}

// SetEffectIntensity sets the effect intensity (0-255).
func (e *Engine) SetEffectIntensity(v int) error {
	return e.segmentScalar("effect intensity", v, func(seg *SegmentCommand, p *int) { seg.Intensity = p })
}

func (e *Engine) segmentScalar(what string, v int, assign func(*SegmentCommand, *int)) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		if err := checkRange(what, v, 0, 255); err != nil {
			return err
		}
		seg := SegmentCommand{ID: e.opts.TargetSegment}
		assign(&seg, &v)
		cmd := NewStateCommand()
		cmd.Segments = []SegmentCommand{seg}
		return e.sendCommand(cmd)
	})
}

// ActivatePreset applies a saved preset by name or id.
func (e *Engine) ActivatePreset(tok Token) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		id, err := e.resolveLogged(tok, KindPreset)
		if err != nil {
			return err
		}
		cmd := NewStateCommand()
		cmd.Preset = &id
		return e.sendCommand(cmd)
	})
}

// DeletePreset removes a saved preset by name or id and schedules a
// catalog refresh so the deletion becomes visible.
func (e *Engine) DeletePreset(tok Token) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		id, err := e.resolveLogged(tok, KindPreset)
		if err != nil {
			return err
		}
		cmd := NewStateCommand()
		cmd.DeletePreset = &id
		if err := e.sendCommand(cmd); err != nil {
			return err
		}
		e.schedulePresetRefresh()
		return nil
	})
}

// SavePreset assembles and issues a save-preset payload, then schedules a
// catalog refresh so the new entry becomes resolvable by name.
func (e *Engine) SavePreset(params PresetParams) (int, error) {
	var id int
	err := e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		cmd, slot, err := e.builder.BuildPreset(params, e.sync.CurrentSegment(), e.opts.TargetSegment)
		if err != nil {
			return err
		}
		if err := e.sendCommand(cmd); err != nil {
			return err
		}
		id = slot
		e.schedulePresetRefresh()
		return nil
	})
	return id, err
}

// ActivatePlaylist starts a playlist by name or id.
func (e *Engine) ActivatePlaylist(tok Token) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		id, err := e.resolveLogged(tok, KindPlaylist)
		if err != nil {
			return err
		}
		on := true
		cmd := NewStateCommand()
		cmd.Playlist = &PlaylistCommand{Playlist: id, On: &on}
		return e.sendCommand(cmd)
	})
}

// StopPlaylist stops the running playlist.
func (e *Engine) StopPlaylist() error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		off := false
		cmd := NewStateCommand()
		cmd.Playlist = &PlaylistCommand{Playlist: 0, On: &off}
		return e.sendCommand(cmd)
	})
}

// NextPreset advances the running playlist to its next entry.
func (e *Engine) NextPreset() error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		np := true
		cmd := NewStateCommand()
		cmd.NextPreset = &np
		return e.sendCommand(cmd)
	})
}

// SetTransitionTime changes the default crossfade applied to subsequent
// writes. Driver-local; nothing is sent to the controller.
func (e *Engine) SetTransitionTime(d time.Duration) error {
	return e.do(func() error {
		if d < 0 || d > 6553*time.Second {
			return fmt.Errorf("transition time %v out of range 0s-6553s", d)
		}
		e.opts.TransitionTime = d
		log.Info().Dur("transition_time", d).Msg("Default transition time changed")
		return nil
	})
}

// SetNightlight configures the nightlight. Nil fields are left unchanged;
// mode is one of "instant", "fade", "colorfade", "sunrise".
func (e *Engine) SetNightlight(on *bool, durationMinutes *int, mode string, targetPercent *int) error {
	return e.do(func() error {
		if err := e.checkReady(); err != nil {
			return err
		}
		nl := &NightlightCommand{On: on}
		if durationMinutes != nil {
			if err := checkRange("nightlight duration", *durationMinutes, 1, 255); err != nil {
				return err
			}
			nl.Duration = durationMinutes
		}
		if mode != "" {
			m, err := ParseNightlightMode(mode)
			if err != nil {
				return err
			}
			nl.Mode = &m
		}
		if targetPercent != nil {
			if err := checkRange("nightlight target level", *targetPercent, 0, 100); err != nil {
				return err
			}
			tbri := *targetPercent * 255 / 100
			nl.TargetBri = &tbri
		}
		cmd := NewStateCommand()
		cmd.Nightlight = nl
		return e.sendCommand(cmd)
	})
}

// checkReady gates every command except the full refresh on the
// initialization state machine.
func (e *Engine) checkReady() error {
	if e.Phase() != PhaseReady {
		log.Warn().Str("phase", e.Phase().String()).Msg("Command ignored, engine not initialized")
		return ErrNotReady
	}
	return nil
}

// resolveLogged resolves a token and logs the full catalog as user
// guidance on a miss.
func (e *Engine) resolveLogged(tok Token, kind Kind) (int, error) {
	id, err := e.catalogs.Resolve(tok, kind)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			log.Error().
				Str("token", tok.String()).
				Str("kind", string(kind)).
				Msg(nf.Error() + "; " + nf.Guidance())
		} else {
			log.Error().Err(err).Str("token", tok.String()).Msg("Resolution failed")
		}
		return 0, err
	}
	return id, nil
}

// sendCommand marshals and issues a write. The default transition time is
// attached unless the payload sets its own, and every write requests a
// state echo which is synchronized on completion.
func (e *Engine) sendCommand(cmd *StateCommand) error {
	if cmd.Transition == nil && e.opts.TransitionTime > 0 {
		// Protocol-native 100ms units.
		tt := int(e.opts.TransitionTime.Milliseconds() / 100)
		cmd.Transition = &tt
	}
	cmd.Verbose = true

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	req := &Request{Origin: OriginCommand, Method: http.MethodPost, Path: PathState, Body: body}
	e.retry.Attach(req)
	e.send(req)
	if e.audit != nil {
		e.audit.CommandIssued(req.ID, req.Path)
	}
	return nil
}

// schedulePresetRefresh re-reads the presets file shortly after a write so
// the change becomes resolvable. Scheduled, not awaited: there is a window
// in which catalogs still reflect the pre-write contents.
func (e *Engine) schedulePresetRefresh() {
	e.runner.After("presets_refresh", 2*time.Second, e.requestPresets)
}

// ParseNightlightMode maps a mode name to its protocol value.
func ParseNightlightMode(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "instant":
		return NightlightInstant, nil
	case "fade":
		return NightlightFade, nil
	case "colorfade":
		return NightlightColorFade, nil
	case "sunrise":
		return NightlightSunrise, nil
	default:
		return 0, fmt.Errorf("unknown nightlight mode %q", name)
	}
}
