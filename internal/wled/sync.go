package wled

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Attribute is one host-facing attribute update.
type Attribute struct {
	Name  string
	Value any
	Unit  string
}

// Sink receives batched attribute updates. Implemented by the host surface.
type Sink interface {
	Publish(updates []Attribute)
}

// Synchronizer applies device snapshots to the host attribute surface.
// For every derived attribute it compares the new value against the last
// published one and emits only actual changes, as one batch.
type Synchronizer struct {
	targetSegment int
	catalogs      *Catalogs
	sink          Sink

	// selfHeal is invoked when the target segment vanishes from a
	// snapshot; it schedules a recovery full refresh.
	selfHeal func()

	last        map[string]any
	lastSegment *Segment
}

// NewSynchronizer creates a synchronizer for the configured target segment.
func NewSynchronizer(targetSegment int, catalogs *Catalogs, sink Sink, selfHeal func()) *Synchronizer {
	return &Synchronizer{
		targetSegment: targetSegment,
		catalogs:      catalogs,
		sink:          sink,
		selfHeal:      selfHeal,
		last:          make(map[string]any),
	}
}

// CurrentSegment returns a copy of the most recently applied target
// segment, or nil before the first successful apply. The preset builder
// uses it to backfill unspecified color slots.
func (s *Synchronizer) CurrentSegment() *Segment {
	if s.lastSegment == nil {
		return nil
	}
	seg := *s.lastSegment
	return &seg
}

// Apply diffs a state snapshot against the last published values and emits
// the changed attributes as one batch. If the target segment is absent the
// snapshot is not applied at all and a self-heal refresh is requested, so
// stale values are never reported for a vanished segment.
func (s *Synchronizer) Apply(state *State) {
	seg := findSegment(state.Segments, s.targetSegment)
	if seg == nil {
		log.Warn().
			Int("target_segment", s.targetSegment).
			Int("segments", len(state.Segments)).
			Msg("Target segment missing from snapshot, requesting self-heal refresh")
		if s.selfHeal != nil {
			s.selfHeal()
		}
		return
	}

	segCopy := *seg
	s.lastSegment = &segCopy

	var batch []Attribute
	s.collect(&batch, "switch", onOff(seg.On), "")
	s.collect(&batch, "level", briToPercent(seg.Bri), "%")

	if len(seg.Colors) > 0 && len(seg.Colors[0]) >= 3 {
		primary := seg.Colors[0]
		s.collect(&batch, "colorName", ColorName(primary[0], primary[1], primary[2]), "")
	}

	s.collect(&batch, "effectId", seg.Effect, "")
	s.collect(&batch, "effectName", s.catalogs.Name(KindEffect, seg.Effect), "")
	s.collect(&batch, "effectSpeed", seg.Speed, "")
	s.collect(&batch, "effectIntensity", seg.Intensity, "")
	s.collect(&batch, "paletteId", seg.Palette, "")
	s.collect(&batch, "paletteName", s.catalogs.Name(KindPalette, seg.Palette), "")
	s.collect(&batch, "direction", direction(seg.Reverse), "")

	s.collect(&batch, "presetValue", state.Preset, "")
	s.collect(&batch, "presetName", s.activeName(KindPreset, state.Preset), "")
	s.collect(&batch, "playlistId", state.Playlist, "")
	s.collect(&batch, "playlistName", s.activeName(KindPlaylist, state.Playlist), "")
	s.collect(&batch, "playlistState", playlistState(state.Playlist), "")

	s.collect(&batch, "nightlight", onOff(state.Nightlight.On), "")
	s.collect(&batch, "nightlightDuration", state.Nightlight.Duration, "min")
	s.collect(&batch, "nightlightMode", NightlightModeName(state.Nightlight.Mode), "")
	s.collect(&batch, "nightlightTargetBrightness", briToPercent(state.Nightlight.TargetBri), "%")
	s.collect(&batch, "nightlightRemaining", state.Nightlight.Remaining, "min")

	s.flush(batch)
}

// ApplyInfo publishes the device description attributes.
func (s *Synchronizer) ApplyInfo(info *Info) {
	var batch []Attribute
	s.collect(&batch, "firmware", info.Version, "")
	s.collect(&batch, "deviceName", info.Name, "")
	s.flush(batch)
}

// PublishConnectionState reports connection health as an attribute.
func (s *Synchronizer) PublishConnectionState(state ConnState) {
	var batch []Attribute
	s.collect(&batch, "connection", state.String(), "")
	s.flush(batch)
}

// collect appends the attribute to the batch only when its value differs
// from the last published one.
func (s *Synchronizer) collect(batch *[]Attribute, name string, value any, unit string) {
	if prev, ok := s.last[name]; ok && prev == value {
		return
	}
	s.last[name] = value
	*batch = append(*batch, Attribute{Name: name, Value: value, Unit: unit})
}

func (s *Synchronizer) flush(batch []Attribute) {
	if len(batch) == 0 {
		return
	}
	log.Debug().Int("updates", len(batch)).Msg("Publishing attribute batch")
	s.sink.Publish(batch)
}

// activeName resolves the display name for the active preset or playlist;
// ids below 1 mean none is active.
func (s *Synchronizer) activeName(kind Kind, id int) string {
	if id < 1 {
		return "None"
	}
	if name := s.catalogs.Name(kind, id); name != "" {
		return name
	}
	return "Unknown"
}

func findSegment(segments []Segment, id int) *Segment {
	for i := range segments {
		if segments[i].ID == id {
			return &segments[i]
		}
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func direction(reverse bool) string {
	if reverse {
		return "reversed"
	}
	return "forward"
}

func playlistState(id int) string {
	if id >= 1 {
		return "running"
	}
	return "stopped"
}

func briToPercent(bri int) int {
	return int(math.Round(float64(bri) * 100.0 / 255.0))
}
