// Package script hosts the optional Lua automation surface: user scripts
// receive attribute updates and issue controller commands through the
// wled.* module.
package script

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/obeisser/wledd/internal/eventbus"
)

// ErrRuntimeClosed is returned when the runtime is closed
var ErrRuntimeClosed = fmt.Errorf("script runtime closed")

// Work is a unit of execution on the Lua VM. All Lua execution MUST go
// through the work queue to ensure single-threaded access to the state.
type Work func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L          *lua.LState
	scriptPath string

	wledModule *WLEDModule
	logModule  *LogModule

	workQueue chan Work

	// Closing this channel signals senders to stop; a channel in select
	// is race-free, unlike mutex + bool.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a runtime exposing the controller to scripts.
func NewRuntime(scriptPath string, controller Controller) *Runtime {
	L := lua.NewState()

	r := &Runtime{
		L:          L,
		scriptPath: scriptPath,
		wledModule: NewWLEDModule(controller),
		logModule:  NewLogModule(),
		workQueue:  make(chan Work, 100),
		closing:    make(chan struct{}),
	}

	L.PreloadModule("wled", r.wledModule.Loader)
	L.PreloadModule("log", r.logModule.Loader)

	return r
}

// LoadScript executes the script file, registering its handlers.
func (r *Runtime) LoadScript() error {
	if _, err := os.Stat(r.scriptPath); err != nil {
		return fmt.Errorf("script not found: %w", err)
	}
	if err := r.L.DoFile(r.scriptPath); err != nil {
		return fmt.Errorf("failed to load script %s: %w", r.scriptPath, err)
	}
	log.Info().Str("script", r.scriptPath).Msg("Automation script loaded")
	return nil
}

// Start begins the worker that serializes Lua execution.
func (r *Runtime) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.closing:
				return
			case w := <-r.workQueue:
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							log.Error().Interface("panic", rec).Msg("Script handler panicked")
						}
					}()
					w(ctx)
				}()
			}
		}
	}()
}

// Do enqueues work for the Lua VM. Returns ErrRuntimeClosed after Close.
func (r *Runtime) Do(w Work) error {
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case r.workQueue <- w:
		return nil
	}
}

// RegisterHandlers subscribes the script's attribute handlers to the bus.
func (r *Runtime) RegisterHandlers(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeAttribute, func(event eventbus.Event) {
		name, _ := event.Data["name"].(string)
		handlers := r.wledModule.HandlersFor(name)
		if len(handlers) == 0 {
			return
		}

		value := event.Data["value"]
		unit, _ := event.Data["unit"].(string)

		err := r.Do(func(ctx context.Context) {
			for _, fn := range handlers {
				if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
					lua.LString(name), goToLuaValue(r.L, value), lua.LString(unit)); err != nil {
					log.Error().Err(err).Str("attribute", name).Msg("Attribute handler failed")
				}
			}
		})
		if err != nil {
			log.Debug().Str("attribute", name).Msg("Runtime closed, dropping attribute event")
		}
	})
}

// Close stops accepting work and closes the Lua state.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
		r.L.Close()
	})
}
