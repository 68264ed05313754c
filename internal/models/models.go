// Package models defines the shared data structures passed between the
// engine, the visualizer, the LED client, and the monitor bridge.
package models

import "time"

// RGB is one LED color, 8 bits per channel.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Lerp interpolates towards target by t in [0,1].
func (c RGB) Lerp(target RGB, t float64) RGB {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return target
	}
	return RGB{
		R: uint8(float64(c.R) + (float64(target.R)-float64(c.R))*t),
		G: uint8(float64(c.G) + (float64(target.G)-float64(c.G))*t),
		B: uint8(float64(c.B) + (float64(target.B)-float64(c.B))*t),
	}
}

// Scale multiplies all channels by f, clamped to [0,255].
func (c RGB) Scale(f float64) RGB {
	return RGB{scale8(c.R, f), scale8(c.G, f), scale8(c.B, f)}
}

func scale8(v uint8, f float64) uint8 {
	x := float64(v) * f
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// Frame is one rendered frame of virtual LED colors.
type Frame []RGB

// BandLevels is one analyzer reading consumed by the visualizer.
type BandLevels struct {
	Percussion    float64 `json:"percussion"`
	Bass          float64 `json:"bass"`
	Melody        float64 `json:"melody"`
	Volume        float64 `json:"volume"`
	BeatIntensity float64 `json:"beat_intensity"`
	State         string  `json:"state"` // idle, kick, snare, peak
	AGCGain       float64 `json:"agc_gain"`
}

// BandColors holds the color assigned to each band zone.
type BandColors struct {
	Percussion RGB `json:"percussion"`
	Bass       RGB `json:"bass"`
	Melody     RGB `json:"melody"`
}

// Snapshot is the live engine state exposed to monitoring UIs.
type Snapshot struct {
	Track      string     `json:"track"`
	IsPlaying  bool       `json:"is_playing"`
	Bands      BandLevels `json:"bands"`
	BandColors BandColors `json:"band_colors"`
	LEDColors  []RGB      `json:"led_colors"`
	LEDCount   int        `json:"led_count"`
	FPS        float64    `json:"fps"`
	LastUpdate time.Time  `json:"last_update"`
}

// DeviceInfo describes one LED device exposed via the monitor API.
type DeviceInfo struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	LEDs     int    `json:"leds"`
	Excluded bool   `json:"excluded"`
	BGR      bool   `json:"bgr"`
}
