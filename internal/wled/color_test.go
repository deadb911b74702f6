package wled

import "testing"

func TestColorName(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b int
		want    string
	}{
		{name: "hue/red", r: 255, g: 0, b: 0, want: "Red"},
		{name: "hue/green", r: 0, g: 255, b: 0, want: "Green"},
		{name: "hue/blue", r: 0, g: 0, b: 255, want: "Blue"},
		{name: "hue/cyan", r: 0, g: 255, b: 255, want: "Cyan"},
		{name: "hue/magenta", r: 255, g: 0, b: 255, want: "Magenta"},
		{name: "hue/violet", r: 128, g: 0, b: 255, want: "Violet"},
		{name: "hue/yellow", r: 255, g: 255, b: 0, want: "Yellow"},
		{name: "white/pure", r: 255, g: 255, b: 255, want: "Skylight"},
		{name: "white/narrow_spread", r: 230, g: 230, b: 180, want: "Skylight"},
		{name: "white/warm_ramp", r: 255, g: 160, b: 60, want: "Warm White"},
		{name: "white/full_warm_ramp", r: 255, g: 128, b: 0, want: "Sodium"},
		{name: "white/cool_ramp", r: 60, g: 120, b: 255, want: "Polar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorName(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("ColorName(%d, %d, %d) = %q, want %q", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestKelvinName(t *testing.T) {
	tests := []struct {
		kelvin int
		want   string
	}{
		{1800, "Sodium"},
		{2000, "Sodium"},
		{2700, "Incandescent"},
		{3500, "Warm White"},
		{5000, "Daylight"},
		{6500, "Skylight"},
		{12000, "Polar"},
	}

	for _, tt := range tests {
		if got := kelvinName(tt.kelvin); got != tt.want {
			t.Errorf("kelvinName(%d) = %q, want %q", tt.kelvin, got, tt.want)
		}
	}
}

func TestEstimateKelvin(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b int
		want    int
	}{
		{name: "balanced", r: 255, g: 255, b: 255, want: 6500},
		{name: "fully_warm", r: 255, g: 128, b: 0, want: 2000},
		{name: "fully_cool", r: 0, g: 128, b: 255, want: 25000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateKelvin(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("estimateKelvin(%d, %d, %d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestHueNameWrapsAroundRed(t *testing.T) {
	// Red is centered on 0 and spans 345..15 across the wrap.
	for _, hue := range []float64{0, 10, 350, 359.9} {
		if got := hueName(hue); got != "Red" {
			t.Errorf("hueName(%v) = %q, want Red", hue, got)
		}
	}
	if got := hueName(20); got != "Orange" {
		t.Errorf("hueName(20) = %q, want Orange", got)
	}
}
