// Package bands renders the zoned band visualizer: the virtual LED strip
// is split into percussion, bass and melody zones, each driven by its own
// smoothed band level and colored from the album palette or a derived
// scheme.
package bands

import (
	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
	"github.com/spotrgb/agent/internal/palette"
)

// Renderer turns analyzer levels and band colors into LED frames. It is
// stateful (smoothers, beat envelope, previous frame) and not safe for
// concurrent use; the engine calls it from the render loop only.
type Renderer struct {
	cfg    config.BandsConfig
	layout Layout

	percussion *smoother
	bass       *smoother
	melody     *smoother
	beat       *envelope

	decayMult float64
	prev      models.Frame
}

// New creates a renderer for a virtual strip of total LEDs.
func New(cfg config.BandsConfig, total int) *Renderer {
	return &Renderer{
		cfg:        cfg,
		layout:     NewLayout(total, cfg),
		percussion: newSmoother(cfg.SmoothingAttack, cfg.SmoothingDecay),
		bass:       newSmoother(cfg.SmoothingAttack, cfg.SmoothingDecay),
		melody:     newSmoother(cfg.SmoothingAttack, cfg.SmoothingDecay),
		beat:       newEnvelope(cfg.BeatAttack, cfg.BeatDecay),
		decayMult:  1,
	}
}

// Layout returns the zone split in use.
func (r *Renderer) Layout() Layout {
	return r.layout
}

// Reset clears the temporal state, used on track changes so stale colors
// do not bleed into the new palette.
func (r *Renderer) Reset() {
	r.prev = nil
	r.percussion.value = 0
	r.bass.value = 0
	r.melody.value = 0
	r.beat.value = 0
	r.decayMult = 1
}

// SetDecayMult adjusts how fast the band smoothers release; the engine
// feeds the analyzer's adaptive smoothing multiplier here each frame so
// quiet passages fade slower.
func (r *Renderer) SetDecayMult(m float64) {
	if m <= 0 {
		m = 1
	}
	r.decayMult = m
}

// Render produces the next frame from one analyzer reading.
func (r *Renderer) Render(levels models.BandLevels, colors models.BandColors) models.Frame {
	p := r.percussion.Update(levels.Percussion, r.decayMult)
	b := r.bass.Update(levels.Bass, r.decayMult)
	m := r.melody.Update(levels.Melody, r.decayMult)
	beatEnv := r.beat.Update(levels.BeatIntensity)

	frame := make(models.Frame, 0, r.layout.Total())
	frame = r.renderZone(frame, colors.Percussion, p, beatEnv, r.layout.Percussion)
	frame = r.renderZone(frame, colors.Bass, b, beatEnv, r.layout.Bass)
	frame = r.renderZone(frame, colors.Melody, m, beatEnv, r.layout.Melody)

	r.blendBorders(frame)

	if len(r.prev) == len(frame) && r.cfg.ColorLerp > 0 && r.cfg.ColorLerp < 1 {
		for i := range frame {
			frame[i] = r.prev[i].Lerp(frame[i], r.cfg.ColorLerp)
		}
	}
	r.prev = append(r.prev[:0], frame...)
	return frame
}

// renderZone appends one zone's LEDs: base color scaled by the brightness
// curve, brightened and color-shifted on beats, with a mild gradient along
// the zone so it reads as depth instead of a flat block.
func (r *Renderer) renderZone(frame models.Frame, color models.RGB, level, beatEnv float64, size int) models.Frame {
	brightness := r.brightnessFor(level)
	if beatEnv > 0 {
		brightness += r.cfg.BeatFlash * beatEnv * level
		if brightness > 1 {
			brightness = 1
		}
		color = shiftColor(color, r.cfg.ColorShiftMode, r.cfg.BeatColorShift*beatEnv)
	}

	base := color.Scale(brightness)
	for i := 0; i < size; i++ {
		fade := 1 - r.cfg.InternalGradient*float64(i)
		if fade < 0.2 {
			fade = 0.2
		}
		frame = append(frame, base.Scale(fade))
	}
	return frame
}

// brightnessFor maps a band level through the piecewise-linear brightness
// curve. An empty map is the identity.
func (r *Renderer) brightnessFor(level float64) float64 {
	pts := r.cfg.BrightnessMap
	if len(pts) == 0 {
		return clampUnit(level)
	}
	if level <= pts[0].Intensity {
		if pts[0].Intensity <= 0 {
			return pts[0].Brightness
		}
		return pts[0].Brightness * level / pts[0].Intensity
	}
	for i := 1; i < len(pts); i++ {
		if level <= pts[i].Intensity {
			span := pts[i].Intensity - pts[i-1].Intensity
			if span <= 0 {
				return pts[i].Brightness
			}
			t := (level - pts[i-1].Intensity) / span
			return pts[i-1].Brightness + (pts[i].Brightness-pts[i-1].Brightness)*t
		}
	}
	return pts[len(pts)-1].Brightness
}

// blendBorders softens the zone boundaries by pulling LEDs on each side
// toward the neighbor zone's edge color.
func (r *Renderer) blendBorders(frame models.Frame) {
	w := r.cfg.ZoneBlendWidth
	if w <= 0 {
		return
	}
	for _, boundary := range []int{r.layout.Percussion, r.layout.Percussion + r.layout.Bass} {
		if boundary <= 0 || boundary >= len(frame) {
			continue
		}
		left := frame[boundary-1]
		right := frame[boundary]
		for k := 0; k < w; k++ {
			t := 0.5 * float64(w-k) / float64(w+1)
			if li := boundary - 1 - k; li >= 0 {
				frame[li] = frame[li].Lerp(right, t)
			}
			if ri := boundary + k; ri < len(frame) {
				frame[ri] = frame[ri].Lerp(left, t)
			}
		}
	}
}

// shiftColor applies the configured beat color shift.
func shiftColor(c models.RGB, mode string, amount float64) models.RGB {
	if amount <= 0 {
		return c
	}
	switch mode {
	case "saturate":
		return palette.Saturate(c, 1+amount)
	case "complement":
		return c.Lerp(palette.RotateHue(c, 180), amount)
	case "warm":
		return palette.ShiftHueToward(c, 30, amount)
	case "cool":
		return palette.ShiftHueToward(c, 210, amount)
	default: // white
		return palette.ShiftToWhite(c, amount)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
