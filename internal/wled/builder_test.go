package wled

import (
	"errors"
	"reflect"
	"testing"
)

func intPtr(v int) *int       { return &v }
func tokPtr(t Token) *Token   { return &t }
func rgbPtr(r, g, b int) *RGB { return &RGB{r, g, b} }

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RGB
		wantErr bool
	}{
		{name: "plain", in: "FF8000", want: RGB{255, 128, 0}},
		{name: "hash_prefixed", in: "#00ff00", want: RGB{0, 255, 0}},
		{name: "padded", in: " 0a0b0c ", want: RGB{10, 11, 12}},
		{name: "too_short", in: "fff", wantErr: true},
		{name: "not_hex", in: "zzzzzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHexColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPreset(t *testing.T) {
	b := NewBuilder(testCatalogs())

	cmd, id, err := b.BuildPreset(PresetParams{
		Name:       "Sunset",
		ID:         intPtr(30),
		Brightness: intPtr(200),
		Effect:     tokPtr(NamedToken("fire")),
		Palette:    tokPtr(NumericToken(2)),
		Speed:      intPtr(90),
	}, nil, 0)
	if err != nil {
		t.Fatalf("BuildPreset() error = %v", err)
	}
	if id != 30 {
		t.Errorf("slot id = %d, want 30", id)
	}
	if cmd.SavePreset == nil || *cmd.SavePreset != 30 {
		t.Errorf("SavePreset = %v, want 30", cmd.SavePreset)
	}
	if cmd.Name != "Sunset" {
		t.Errorf("Name = %q, want Sunset", cmd.Name)
	}
	if len(cmd.Segments) != 1 {
		t.Fatalf("segment count = %d, want 1", len(cmd.Segments))
	}
	seg := cmd.Segments[0]
	if seg.ID != 0 || seg.Effect == nil || *seg.Effect != 1 || seg.Palette == nil || *seg.Palette != 2 {
		t.Errorf("segment = %+v, want id 0, effect 1, palette 2", seg)
	}
	if seg.Bri == nil || *seg.Bri != 200 || seg.Speed == nil || *seg.Speed != 90 {
		t.Errorf("segment = %+v, want bri 200, speed 90", seg)
	}
}

// Setting only the secondary color backfills the primary slot from the
// active segment instead of resetting it to a protocol default.
func TestBuildPresetColorBackfill(t *testing.T) {
	b := NewBuilder(testCatalogs())
	current := &Segment{ID: 0, Colors: [][]int{{10, 20, 30}}}

	cmd, _, err := b.BuildPreset(PresetParams{
		Name:   "Accent",
		ID:     intPtr(5),
		Colors: [3]*RGB{nil, rgbPtr(0, 255, 0), nil},
	}, current, 0)
	if err != nil {
		t.Fatalf("BuildPreset() error = %v", err)
	}

	want := [][]int{{10, 20, 30}, {0, 255, 0}}
	if !reflect.DeepEqual(cmd.Segments[0].Colors, want) {
		t.Errorf("colors = %v, want %v", cmd.Segments[0].Colors, want)
	}
}

func TestBuildPresetColorBackfillNoCurrent(t *testing.T) {
	b := NewBuilder(testCatalogs())

	cmd, _, err := b.BuildPreset(PresetParams{
		Name:   "Tertiary",
		ID:     intPtr(5),
		Colors: [3]*RGB{nil, nil, rgbPtr(1, 2, 3)},
	}, nil, 0)
	if err != nil {
		t.Fatalf("BuildPreset() error = %v", err)
	}

	want := [][]int{{0, 0, 0}, {0, 0, 0}, {1, 2, 3}}
	if !reflect.DeepEqual(cmd.Segments[0].Colors, want) {
		t.Errorf("colors = %v, want %v", cmd.Segments[0].Colors, want)
	}
}

func TestBuildPresetAutoSlot(t *testing.T) {
	b := NewBuilder(testCatalogs())

	_, id, err := b.BuildPreset(PresetParams{Name: "Auto"}, nil, 0)
	if err != nil {
		t.Fatalf("BuildPreset() error = %v", err)
	}
	// testCatalogs occupies 1, 12 and 20; the lowest free slot is 2.
	if id != 2 {
		t.Errorf("auto slot id = %d, want 2", id)
	}
}

func TestBuildPresetValidation(t *testing.T) {
	b := NewBuilder(testCatalogs())

	tests := []struct {
		name   string
		params PresetParams
	}{
		{name: "missing_name", params: PresetParams{}},
		{name: "slot_out_of_range", params: PresetParams{Name: "X", ID: intPtr(251)}},
		{name: "brightness_out_of_range", params: PresetParams{Name: "X", Brightness: intPtr(300)}},
		{name: "speed_out_of_range", params: PresetParams{Name: "X", Speed: intPtr(-1)}},
		{name: "unknown_effect", params: PresetParams{Name: "X", Effect: tokPtr(NamedToken("nope"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := b.BuildPreset(tt.params, nil, 0)
			if err == nil {
				t.Fatalf("BuildPreset() = %+v, want error", cmd)
			}
			if cmd != nil {
				t.Error("BuildPreset() returned a command alongside an error")
			}
		})
	}
}

func TestBuildPresetUnknownEffectCarriesCatalog(t *testing.T) {
	b := NewBuilder(testCatalogs())

	_, _, err := b.BuildPreset(PresetParams{
		Name:   "X",
		Effect: tokPtr(NamedToken("nope")),
	}, nil, 0)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Kind != KindEffect {
		t.Errorf("NotFoundError kind = %q, want effect", nf.Kind)
	}
}
