package wled

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is one color triple.
type RGB [3]int

// ParseHexColor parses "RRGGBB" (optionally "#"-prefixed) into an RGB triple.
func ParseHexColor(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGB{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, nil
}

// PresetParams is the sparse parameter set for saving a preset. Nil fields
// are left to the controller's current values.
type PresetParams struct {
	Name       string
	ID         *int
	Brightness *int // 0-255
	Effect     *Token
	Palette    *Token
	Speed      *int // 0-255
	Intensity  *int // 0-255
	Colors     [3]*RGB
}

// Builder assembles save-preset write payloads. A build either fully
// validates or fails before anything is sent; there are no partial writes.
type Builder struct {
	catalogs *Catalogs
}

// NewBuilder creates a builder resolving tokens against catalogs.
func NewBuilder(catalogs *Catalogs) *Builder {
	return &Builder{catalogs: catalogs}
}

// BuildPreset assembles the payload for saving a preset to the target
// segment. It returns the command and the slot id it will save to.
//
// Unset color slots below a set one are backfilled from the currently
// active segment rather than from protocol defaults, so "change only the
// secondary color" is expressible without re-stating the primary.
func (b *Builder) BuildPreset(params PresetParams, current *Segment, targetSegment int) (*StateCommand, int, error) {
	if params.Name == "" {
		return nil, 0, fmt.Errorf("preset name is required")
	}

	var id int
	if params.ID != nil {
		id = *params.ID
		if min, max := KindPreset.Range(); id < min || id > max {
			return nil, 0, &OutOfRangeError{Kind: KindPreset, ID: id}
		}
	} else {
		free, ok := b.catalogs.NextFreePresetID()
		if !ok {
			return nil, 0, fmt.Errorf("no free preset slot")
		}
		id = free
	}

	seg := SegmentCommand{ID: targetSegment}

	if params.Brightness != nil {
		if err := checkRange("brightness", *params.Brightness, 0, 255); err != nil {
			return nil, 0, err
		}
		seg.Bri = params.Brightness
	}
	if params.Effect != nil {
		fx, err := b.catalogs.Resolve(*params.Effect, KindEffect)
		if err != nil {
			return nil, 0, err
		}
		seg.Effect = &fx
	}
	if params.Palette != nil {
		pal, err := b.catalogs.Resolve(*params.Palette, KindPalette)
		if err != nil {
			return nil, 0, err
		}
		seg.Palette = &pal
	}
	if params.Speed != nil {
		if err := checkRange("effect speed", *params.Speed, 0, 255); err != nil {
			return nil, 0, err
		}
		seg.Speed = params.Speed
	}
	if params.Intensity != nil {
		if err := checkRange("effect intensity", *params.Intensity, 0, 255); err != nil {
			return nil, 0, err
		}
		seg.Intensity = params.Intensity
	}

	seg.Colors = assembleColors(params.Colors, current)

	cmd := NewStateCommand()
	cmd.SavePreset = &id
	cmd.Name = params.Name
	cmd.Segments = []SegmentCommand{seg}
	return cmd, id, nil
}

// assembleColors builds the color list up to the highest specified slot,
// backfilling earlier unset slots from the current segment.
func assembleColors(colors [3]*RGB, current *Segment) [][]int {
	highest := -1
	for i, c := range colors {
		if c != nil {
			highest = i
		}
	}
	if highest < 0 {
		return nil
	}

	out := make([][]int, 0, highest+1)
	for i := 0; i <= highest; i++ {
		if colors[i] != nil {
			out = append(out, []int{colors[i][0], colors[i][1], colors[i][2]})
			continue
		}
		out = append(out, currentColor(current, i))
	}
	return out
}

// currentColor returns slot i of the active segment, or black when the
// segment has no such slot.
func currentColor(current *Segment, i int) []int {
	if current != nil && i < len(current.Colors) && len(current.Colors[i]) >= 3 {
		c := current.Colors[i]
		return []int{c[0], c[1], c[2]}
	}
	return []int{0, 0, 0}
}

func checkRange(what string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s %d out of range %d-%d", what, v, min, max)
	}
	return nil
}
