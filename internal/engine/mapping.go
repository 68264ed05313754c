package engine

import (
	"github.com/spotrgb/agent/internal/models"
	"github.com/spotrgb/agent/internal/openrgb"
)

// mapping translates the virtual strip the renderer draws on into
// physical per-device frames. Excluded devices keep their length but are
// never written. Skipped LEDs at the strip edges stay dark.
type mapping struct {
	devices   []openrgb.Device
	skipStart int
	skipEnd   int

	physUsable   int // paintable LEDs across all non-excluded devices
	virtualTotal int // LEDs the renderer works with
}

// newMapping lays out the physical strip. override forces the virtual
// LED count; 0 derives it from the usable physical count.
func newMapping(devices []openrgb.Device, skipStart, skipEnd, override int) mapping {
	m := mapping{devices: devices, skipStart: skipStart, skipEnd: skipEnd}
	total := 0
	for _, d := range devices {
		if !d.Excluded {
			total += d.LEDs
		}
	}
	m.physUsable = total - skipStart - skipEnd
	if m.physUsable < 0 {
		m.physUsable = 0
	}

	m.virtualTotal = m.physUsable
	if override > 0 {
		m.virtualTotal = override
	}
	if m.virtualTotal < 3 && m.physUsable > 0 {
		m.virtualTotal = 3
	}
	return m
}

// sample reads the virtual frame at a fractional position with linear
// interpolation between neighboring LEDs.
func sample(frame models.Frame, pos float64) models.RGB {
	if len(frame) == 0 {
		return models.RGB{}
	}
	if pos <= 0 {
		return frame[0]
	}
	if pos >= float64(len(frame)-1) {
		return frame[len(frame)-1]
	}
	i := int(pos)
	t := pos - float64(i)
	return frame[i].Lerp(frame[i+1], t)
}

// distribute resamples the virtual frame onto each device. The returned
// slice is indexed like devices; excluded devices get a nil frame.
func (m mapping) distribute(frame models.Frame) []models.Frame {
	out := make([]models.Frame, len(m.devices))
	if m.physUsable <= 0 {
		return out
	}

	// Scale factor from physical usable position to virtual position.
	scale := float64(len(frame)-1) / float64(max(m.physUsable-1, 1))

	pos := 0 // position along the concatenated non-excluded strip
	for di, d := range m.devices {
		if d.Excluded {
			continue
		}
		devFrame := make(models.Frame, d.LEDs)
		for i := 0; i < d.LEDs; i++ {
			usableIdx := pos + i - m.skipStart
			if usableIdx < 0 || usableIdx >= m.physUsable {
				continue // skipped edge LED stays dark
			}
			devFrame[i] = sample(frame, float64(usableIdx)*scale)
		}
		out[di] = devFrame
		pos += d.LEDs
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
