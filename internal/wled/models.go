// Package wled implements the synchronization and command-resolution engine
// for a WLED controller: an async HTTP transport with bounded retries, a
// connection health monitor, effect/palette/preset/playlist catalogs with
// name-or-id resolution, a state-diffing synchronizer, and a preset builder.
package wled

import "encoding/json"

// Segment is one independently addressable region of the strip.
type Segment struct {
	ID        int     `json:"id"`
	Start     int     `json:"start"`
	Stop      int     `json:"stop"`
	On        bool    `json:"on"`
	Bri       int     `json:"bri"`
	Colors    [][]int `json:"col"` // up to 3 RGB triples, slot 0 = primary
	Effect    int     `json:"fx"`
	Speed     int     `json:"sx"`
	Intensity int     `json:"ix"`
	Palette   int     `json:"pal"`
	Reverse   bool    `json:"rev"`
}

// Nightlight is the controller's nightlight sub-state.
type Nightlight struct {
	On        bool `json:"on"`
	Duration  int  `json:"dur"` // minutes
	Mode      int  `json:"mode"`
	TargetBri int  `json:"tbri"`
	Remaining int  `json:"rem"` // minutes, -1 when inactive
}

// Nightlight modes
const (
	NightlightInstant = iota
	NightlightFade
	NightlightColorFade
	NightlightSunrise
)

// NightlightModeName returns the human-readable nightlight mode.
func NightlightModeName(mode int) string {
	switch mode {
	case NightlightInstant:
		return "Instant"
	case NightlightFade:
		return "Fade"
	case NightlightColorFade:
		return "ColorFade"
	case NightlightSunrise:
		return "Sunrise"
	default:
		return "Unknown"
	}
}

// State is the controller's runtime state as reported by /json/state.
type State struct {
	On         bool       `json:"on"`
	Bri        int        `json:"bri"`
	Transition int        `json:"transition"`
	Preset     int        `json:"ps"` // active preset id, -1 when none
	Playlist   int        `json:"pl"` // active playlist id, -1 when none
	Nightlight Nightlight `json:"nl"`
	Segments   []Segment  `json:"seg"`
}

// Info is the device description from /json/info.
type Info struct {
	Version string `json:"ver"`
	Name    string `json:"name"`
}

// FullState is the aggregate /json response: state, info and the flat
// ordered effect/palette name lists.
type FullState struct {
	State    State    `json:"state"`
	Info     Info     `json:"info"`
	Effects  []string `json:"effects"`
	Palettes []string `json:"palettes"`
}

// PresetRecord is one entry of the /presets.json file. Records carrying a
// playlist object are playlists; everything else is a plain preset.
type PresetRecord struct {
	Name     string          `json:"n"`
	Playlist json.RawMessage `json:"playlist,omitempty"`
}

// IsPlaylist reports whether the record is a playlist definition.
func (r *PresetRecord) IsPlaylist() bool {
	return len(r.Playlist) > 0 && string(r.Playlist) != "null"
}

// SegmentCommand addresses one segment in a write payload. All value fields
// are optional; the controller leaves absent fields untouched.
type SegmentCommand struct {
	ID        int     `json:"id"`
	On        *bool   `json:"on,omitempty"`
	Bri       *int    `json:"bri,omitempty"`
	Colors    [][]int `json:"col,omitempty"`
	Effect    *int    `json:"fx,omitempty"`
	Speed     *int    `json:"sx,omitempty"`
	Intensity *int    `json:"ix,omitempty"`
	Palette   *int    `json:"pal,omitempty"`
	Reverse   *bool   `json:"rev,omitempty"`
}

// PlaylistCommand starts or stops a playlist.
type PlaylistCommand struct {
	Playlist int   `json:"ps"`
	On       *bool `json:"on,omitempty"`
}

// NightlightCommand configures the nightlight.
type NightlightCommand struct {
	On        *bool `json:"on,omitempty"`
	Duration  *int  `json:"dur,omitempty"`
	Mode      *int  `json:"mode,omitempty"`
	TargetBri *int  `json:"tbri,omitempty"`
}

// StateCommand is a write payload for POST /json/state. Every field is a
// subset; Verbose is always set so the controller echoes the resulting state
// and the response can be synchronized without a follow-up read.
type StateCommand struct {
	On           *bool              `json:"on,omitempty"`
	Bri          *int               `json:"bri,omitempty"`
	Transition   *int               `json:"tt,omitempty"` // protocol-native 100ms units
	Preset       *int               `json:"ps,omitempty"`
	SavePreset   *int               `json:"psave,omitempty"`
	DeletePreset *int               `json:"pdel,omitempty"`
	Name         string             `json:"n,omitempty"` // used with SavePreset
	NextPreset   *bool              `json:"np,omitempty"`
	Playlist     *PlaylistCommand   `json:"playlist,omitempty"`
	Nightlight   *NightlightCommand `json:"nl,omitempty"`
	Segments     []SegmentCommand   `json:"seg,omitempty"`
	Verbose      bool               `json:"v"`
}

// NewStateCommand returns a command with echo requested.
func NewStateCommand() *StateCommand {
	return &StateCommand{Verbose: true}
}
