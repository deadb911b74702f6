package wled

import "testing"

type captureSink struct {
	batches [][]Attribute
}

func (c *captureSink) Publish(updates []Attribute) {
	c.batches = append(c.batches, updates)
}

func (c *captureSink) find(name string) (Attribute, bool) {
	for _, batch := range c.batches {
		for _, attr := range batch {
			if attr.Name == name {
				return attr, true
			}
		}
	}
	return Attribute{}, false
}

func sampleState() *State {
	return &State{
		On:  true,
		Bri: 128,
		Segments: []Segment{
			{
				ID:      0,
				On:      true,
				Bri:     128,
				Colors:  [][]int{{255, 0, 0}},
				Effect:  2,
				Speed:   128,
				Palette: 1,
			},
		},
	}
}

func TestSynchronizerApply(t *testing.T) {
	sink := &captureSink{}
	catalogs := testCatalogs()
	sync := NewSynchronizer(0, catalogs, sink, nil)

	sync.Apply(sampleState())

	if len(sink.batches) != 1 {
		t.Fatalf("batch count = %d, want 1", len(sink.batches))
	}

	checks := []struct {
		name string
		want any
		unit string
	}{
		{name: "switch", want: "on"},
		{name: "level", want: 50, unit: "%"},
		{name: "colorName", want: "Red"},
		{name: "effectId", want: 2},
		{name: "effectName", want: "Rainbow"},
		{name: "effectSpeed", want: 128},
		{name: "paletteId", want: 1},
		{name: "paletteName", want: "Party"},
		{name: "direction", want: "forward"},
		{name: "presetValue", want: 0},
		{name: "presetName", want: "None"},
		{name: "playlistState", want: "stopped"},
		{name: "nightlight", want: "off"},
	}
	for _, c := range checks {
		attr, ok := sink.find(c.name)
		if !ok {
			t.Errorf("attribute %q not published", c.name)
			continue
		}
		if attr.Value != c.want {
			t.Errorf("attribute %q = %v, want %v", c.name, attr.Value, c.want)
		}
		if attr.Unit != c.unit {
			t.Errorf("attribute %q unit = %q, want %q", c.name, attr.Unit, c.unit)
		}
	}
}

// A second apply of an identical snapshot must emit nothing: the diff layer
// suppresses unchanged attributes, and empty batches are not flushed.
func TestSynchronizerApplyIdempotent(t *testing.T) {
	sink := &captureSink{}
	sync := NewSynchronizer(0, testCatalogs(), sink, nil)

	sync.Apply(sampleState())
	sync.Apply(sampleState())

	if len(sink.batches) != 1 {
		t.Fatalf("batch count = %d, want 1", len(sink.batches))
	}
}

func TestSynchronizerApplyPartialChange(t *testing.T) {
	sink := &captureSink{}
	sync := NewSynchronizer(0, testCatalogs(), sink, nil)

	sync.Apply(sampleState())

	next := sampleState()
	next.Segments[0].Bri = 255
	sync.Apply(next)

	if len(sink.batches) != 2 {
		t.Fatalf("batch count = %d, want 2", len(sink.batches))
	}
	second := sink.batches[1]
	if len(second) != 1 {
		t.Fatalf("second batch size = %d, want 1: %+v", len(second), second)
	}
	if second[0].Name != "level" || second[0].Value != 100 {
		t.Errorf("second batch = %+v, want level=100", second[0])
	}
}

func TestSynchronizerMissingSegment(t *testing.T) {
	sink := &captureSink{}
	healed := 0
	sync := NewSynchronizer(3, testCatalogs(), sink, func() { healed++ })

	sync.Apply(sampleState())

	if healed != 1 {
		t.Errorf("selfHeal calls = %d, want 1", healed)
	}
	if len(sink.batches) != 0 {
		t.Errorf("published %d batches for missing segment, want 0", len(sink.batches))
	}
	if sync.CurrentSegment() != nil {
		t.Error("CurrentSegment() not nil after missing segment")
	}
}

func TestSynchronizerActivePresetAndPlaylist(t *testing.T) {
	sink := &captureSink{}
	sync := NewSynchronizer(0, testCatalogs(), sink, nil)

	state := sampleState()
	state.Preset = 12
	state.Playlist = 20
	sync.Apply(state)

	for _, c := range []struct {
		name string
		want any
	}{
		{"presetName", "Movie Night"},
		{"playlistName", "Morning Cycle"},
		{"playlistState", "running"},
	} {
		attr, ok := sink.find(c.name)
		if !ok || attr.Value != c.want {
			t.Errorf("attribute %q = %v (found=%v), want %v", c.name, attr.Value, ok, c.want)
		}
	}
}

func TestSynchronizerCurrentSegmentIsCopy(t *testing.T) {
	sink := &captureSink{}
	sync := NewSynchronizer(0, testCatalogs(), sink, nil)
	sync.Apply(sampleState())

	seg := sync.CurrentSegment()
	if seg == nil {
		t.Fatal("CurrentSegment() = nil after apply")
	}
	seg.Bri = 1

	again := sync.CurrentSegment()
	if again.Bri != 128 {
		t.Errorf("CurrentSegment() mutated through returned copy: bri = %d", again.Bri)
	}
}

func TestBriToPercent(t *testing.T) {
	tests := []struct {
		bri  int
		want int
	}{
		{0, 0},
		{1, 0},
		{128, 50},
		{255, 100},
	}
	for _, tt := range tests {
		if got := briToPercent(tt.bri); got != tt.want {
			t.Errorf("briToPercent(%d) = %d, want %d", tt.bri, got, tt.want)
		}
	}
}
