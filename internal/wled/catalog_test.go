package wled

import (
	"strconv"
	"testing"
)

func TestSetPresetsSplit(t *testing.T) {
	c := NewCatalogs()
	c.SetPresets(map[string]PresetRecord{
		"0":   {Name: "Reserved"},
		"1":   {Name: "Evening"},
		"12":  {Name: "Movie Night"},
		"3":   {Name: "Reading"},
		"20":  {Name: "Morning Cycle", Playlist: []byte(`{"ps":[1,12]}`)},
		"bad": {Name: "Broken"},
	})

	presets := c.Entries(KindPreset)
	if len(presets) != 3 {
		t.Fatalf("preset count = %d, want 3", len(presets))
	}
	for i, want := range []Entry{{1, "Evening"}, {3, "Reading"}, {12, "Movie Night"}} {
		if presets[i] != want {
			t.Errorf("presets[%d] = %+v, want %+v", i, presets[i], want)
		}
	}

	playlists := c.Entries(KindPlaylist)
	if len(playlists) != 1 || playlists[0] != (Entry{20, "Morning Cycle"}) {
		t.Errorf("playlists = %+v, want single Morning Cycle", playlists)
	}

	if got := c.Name(KindPreset, 0); got != "" {
		t.Errorf("reserved slot 0 kept in catalog with name %q", got)
	}
}

// Refresh replaces the catalog wholesale, so a deleted slot disappears
// as soon as the next presets file is applied.
func TestSetPresetsReplaceDropsDeleted(t *testing.T) {
	c := NewCatalogs()
	c.SetPresets(map[string]PresetRecord{
		"1":  {Name: "Evening"},
		"12": {Name: "Movie Night"},
	})
	c.SetPresets(map[string]PresetRecord{
		"1": {Name: "Evening"},
	})

	if got := c.Name(KindPreset, 12); got != "" {
		t.Errorf("deleted slot 12 still resolves to %q", got)
	}
	if len(c.Entries(KindPreset)) != 1 {
		t.Errorf("preset count = %d, want 1", len(c.Entries(KindPreset)))
	}
}

func TestNextFreePresetID(t *testing.T) {
	tests := []struct {
		name    string
		presets map[string]PresetRecord
		want    int
		wantOK  bool
	}{
		{
			name:    "empty",
			presets: map[string]PresetRecord{},
			want:    1, wantOK: true,
		},
		{
			name: "gap",
			presets: map[string]PresetRecord{
				"1": {Name: "A"},
				"3": {Name: "C"},
			},
			want: 2, wantOK: true,
		},
		{
			name: "playlists_share_space",
			presets: map[string]PresetRecord{
				"1": {Name: "A"},
				"2": {Name: "Cycle", Playlist: []byte(`{"ps":[1]}`)},
			},
			want: 3, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalogs()
			c.SetPresets(tt.presets)
			got, ok := c.NextFreePresetID()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NextFreePresetID() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNextFreePresetIDExhausted(t *testing.T) {
	records := make(map[string]PresetRecord, 250)
	for id := 1; id <= 250; id++ {
		records[strconv.Itoa(id)] = PresetRecord{Name: "P"}
	}
	c := NewCatalogs()
	c.SetPresets(records)

	if _, ok := c.NextFreePresetID(); ok {
		t.Error("NextFreePresetID() reported a free slot in a full space")
	}
}

func TestSetEffectsOrdinals(t *testing.T) {
	c := NewCatalogs()
	c.SetEffects([]string{"Solid", "Blink", "Breathe"})

	if got := c.Name(KindEffect, 1); got != "Blink" {
		t.Errorf("Name(effect, 1) = %q, want Blink", got)
	}
	if got := c.Name(KindEffect, 7); got != "" {
		t.Errorf("Name(effect, 7) = %q, want empty", got)
	}
}
