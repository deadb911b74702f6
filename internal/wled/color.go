package wled

import "math"

// ctChannelDelta is the per-channel spread under which an RGB triple is
// treated as a white-balance temperature rather than a saturated color.
const ctChannelDelta = 64

// ColorName returns a human-readable name for an RGB triple. White-ish
// colors are named after their estimated color temperature band, everything
// else after its hue bucket.
func ColorName(r, g, b int) string {
	if looksLikeWhite(r, g, b) {
		return kelvinName(estimateKelvin(r, g, b))
	}
	h, _ := rgbToHueSat(r, g, b)
	return hueName(h)
}

// looksLikeWhite tests whether a triple is plausibly a white-balance
// temperature: either all channels close together, or a strictly monotonic
// warm (r>g>b) or cool (b>g>r) ramp.
func looksLikeWhite(r, g, b int) bool {
	maxC := max3(r, g, b)
	minC := min3(r, g, b)
	if maxC-minC < ctChannelDelta {
		return true
	}
	if r > g && g > b {
		return true
	}
	if b > g && g > r {
		return true
	}
	return false
}

// estimateKelvin maps an RGB white ramp onto an approximate temperature.
// Equal red and blue sits at 6500K; red dominance pulls warm, blue
// dominance pulls cool.
func estimateKelvin(r, g, b int) int {
	if r >= b {
		return 6500 - (r-b)*4500/255 // 2000..6500
	}
	return 6500 + (b-r)*18500/255 // 6500..25000
}

// kelvinName buckets a temperature into a named white point, ascending.
func kelvinName(kelvin int) string {
	switch {
	case kelvin <= 2000:
		return "Sodium"
	case kelvin <= 3000:
		return "Incandescent"
	case kelvin <= 4000:
		return "Warm White"
	case kelvin <= 5500:
		return "Daylight"
	case kelvin <= 7000:
		return "Skylight"
	default:
		return "Polar"
	}
}

// rgbToHueSat converts RGB (0-255) to hue (degrees, 0-360) and
// saturation (0-1).
func rgbToHueSat(r, g, b int) (float64, float64) {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	if delta == 0 {
		return 0, 0
	}

	var hue float64
	switch maxC {
	case rf:
		hue = math.Mod((gf-bf)/delta, 6)
	case gf:
		hue = (bf-rf)/delta + 2
	default:
		hue = (rf-gf)/delta + 4
	}
	hue *= 60
	if hue < 0 {
		hue += 360
	}

	sat := delta / maxC
	return hue, sat
}

// hueName buckets a hue angle into one of twelve 30-degree color names.
func hueName(hue float64) string {
	names := []string{
		"Red", "Orange", "Yellow", "Chartreuse", "Green", "Spring",
		"Cyan", "Azure", "Blue", "Violet", "Magenta", "Rose",
	}
	// Each band is centered on its canonical angle: Red spans 345..15.
	idx := int(math.Mod(hue+15, 360) / 30)
	return names[idx]
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
