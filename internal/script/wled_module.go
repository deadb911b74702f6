package script

import (
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/obeisser/wledd/internal/wled"
)

// Controller is the engine command surface exposed to scripts.
type Controller interface {
	On() error
	Off() error
	Toggle() error
	SetBrightness(percent int) error
	SetTransitionTime(d time.Duration) error
	SetEffect(tok wled.Token, speed, intensity *int) error
	SetPalette(tok wled.Token) error
	ActivatePreset(tok wled.Token) error
	DeletePreset(tok wled.Token) error
	SavePreset(params wled.PresetParams) (int, error)
	ActivatePlaylist(tok wled.Token) error
	StopPlaylist() error
	NextPreset() error
	Refresh()
}

// WLEDModule provides wled.* functions to Lua.
//
// ERROR HANDLING CONVENTION:
// All functions that can fail return two values: (ok, error_string).
//   - On success: (true, nil)
//   - On error: (false, "error message")
type WLEDModule struct {
	controller Controller

	mu       sync.Mutex
	handlers map[string][]*lua.LFunction
}

// NewWLEDModule creates a new wled module
func NewWLEDModule(controller Controller) *WLEDModule {
	return &WLEDModule{
		controller: controller,
		handlers:   make(map[string][]*lua.LFunction),
	}
}

// Loader is the module loader for Lua
func (m *WLEDModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on", L.NewFunction(m.wrap(func(L *lua.LState) error { return m.controller.On() })))
	L.SetField(mod, "off", L.NewFunction(m.wrap(func(L *lua.LState) error { return m.controller.Off() })))
	L.SetField(mod, "toggle", L.NewFunction(m.wrap(func(L *lua.LState) error { return m.controller.Toggle() })))
	L.SetField(mod, "set_brightness", L.NewFunction(m.setBrightness))
	L.SetField(mod, "set_transition_time", L.NewFunction(m.setTransitionTime))
	L.SetField(mod, "set_effect", L.NewFunction(m.setEffect))
	L.SetField(mod, "set_palette", L.NewFunction(m.setPalette))
	L.SetField(mod, "activate_preset", L.NewFunction(m.activatePreset))
	L.SetField(mod, "delete_preset", L.NewFunction(m.deletePreset))
	L.SetField(mod, "save_preset", L.NewFunction(m.savePreset))
	L.SetField(mod, "activate_playlist", L.NewFunction(m.activatePlaylist))
	L.SetField(mod, "stop_playlist", L.NewFunction(m.wrap(func(L *lua.LState) error { return m.controller.StopPlaylist() })))
	L.SetField(mod, "next_preset", L.NewFunction(m.wrap(func(L *lua.LState) error { return m.controller.NextPreset() })))
	L.SetField(mod, "refresh", L.NewFunction(m.refresh))
	L.SetField(mod, "on_attribute", L.NewFunction(m.onAttribute))

	L.Push(mod)
	return 1
}

// wrap adapts a no-argument command to the (ok, err) convention.
func (m *WLEDModule) wrap(fn func(*lua.LState) error) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushResult(L, fn(L))
	}
}

// set_brightness(percent) -> (ok, err)
func (m *WLEDModule) setBrightness(L *lua.LState) int {
	percent := L.CheckInt(1)
	return pushResult(L, m.controller.SetBrightness(percent))
}

// set_transition_time(seconds) -> (ok, err)
func (m *WLEDModule) setTransitionTime(L *lua.LState) int {
	secs := float64(L.CheckNumber(1))
	return pushResult(L, m.controller.SetTransitionTime(time.Duration(secs*float64(time.Second))))
}

// set_effect(token [, speed, intensity]) -> (ok, err)
func (m *WLEDModule) setEffect(L *lua.LState) int {
	tok := wled.ParseToken(L.CheckString(1))
	var speed, intensity *int
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		v := L.CheckInt(2)
		speed = &v
	}
	if L.GetTop() >= 3 && L.Get(3) != lua.LNil {
		v := L.CheckInt(3)
		intensity = &v
	}
	return pushResult(L, m.controller.SetEffect(tok, speed, intensity))
}

// set_palette(token) -> (ok, err)
func (m *WLEDModule) setPalette(L *lua.LState) int {
	tok := wled.ParseToken(L.CheckString(1))
	return pushResult(L, m.controller.SetPalette(tok))
}

// activate_preset(token) -> (ok, err)
func (m *WLEDModule) activatePreset(L *lua.LState) int {
	tok := wled.ParseToken(L.CheckString(1))
	return pushResult(L, m.controller.ActivatePreset(tok))
}

// delete_preset(token) -> (ok, err)
func (m *WLEDModule) deletePreset(L *lua.LState) int {
	tok := wled.ParseToken(L.CheckString(1))
	return pushResult(L, m.controller.DeletePreset(tok))
}

// save_preset{name=..., id=?, brightness=?, effect=?, palette=?, speed=?,
// intensity=?, color0=?, color1=?, color2=?} -> (id, err)
func (m *WLEDModule) savePreset(L *lua.LState) int {
	tbl := L.CheckTable(1)

	params := wled.PresetParams{}
	params.Name = getString(tbl, "name")

	if v := tbl.RawGetString("id"); v != lua.LNil {
		id := int(lua.LVAsNumber(v))
		params.ID = &id
	}
	if v := tbl.RawGetString("brightness"); v != lua.LNil {
		bri := int(lua.LVAsNumber(v))
		params.Brightness = &bri
	}
	if v := tbl.RawGetString("effect"); v != lua.LNil {
		tok := wled.ParseToken(v.String())
		params.Effect = &tok
	}
	if v := tbl.RawGetString("palette"); v != lua.LNil {
		tok := wled.ParseToken(v.String())
		params.Palette = &tok
	}
	if v := tbl.RawGetString("speed"); v != lua.LNil {
		s := int(lua.LVAsNumber(v))
		params.Speed = &s
	}
	if v := tbl.RawGetString("intensity"); v != lua.LNil {
		i := int(lua.LVAsNumber(v))
		params.Intensity = &i
	}
	for slot, key := range []string{"color0", "color1", "color2"} {
		if v := tbl.RawGetString(key); v != lua.LNil {
			rgb, err := wled.ParseHexColor(v.String())
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			c := rgb
			params.Colors[slot] = &c
		}
	}

	id, err := m.controller.SavePreset(params)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(id))
	L.Push(lua.LNil)
	return 2
}

// activate_playlist(token) -> (ok, err)
func (m *WLEDModule) activatePlaylist(L *lua.LState) int {
	tok := wled.ParseToken(L.CheckString(1))
	return pushResult(L, m.controller.ActivatePlaylist(tok))
}

// refresh() - request a full snapshot
func (m *WLEDModule) refresh(L *lua.LState) int {
	m.controller.Refresh()
	return 0
}

// on_attribute(name, fn) - register a handler for attribute updates.
// name "*" matches every attribute.
func (m *WLEDModule) onAttribute(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	m.mu.Lock()
	m.handlers[name] = append(m.handlers[name], fn)
	m.mu.Unlock()
	return 0
}

// HandlersFor returns the registered handlers matching an attribute name.
func (m *WLEDModule) HandlersFor(name string) []*lua.LFunction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*lua.LFunction, 0, len(m.handlers[name])+len(m.handlers["*"]))
	out = append(out, m.handlers[name]...)
	out = append(out, m.handlers["*"]...)
	return out
}

func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LBool(false))
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LBool(true))
	L.Push(lua.LNil)
	return 2
}

func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return v.String()
}
