package bands

import "github.com/spotrgb/agent/internal/config"

// Layout is the virtual LED strip split into the three band zones,
// percussion at the start, melody at the end.
type Layout struct {
	Percussion int
	Bass       int
	Melody     int
}

// Total is the virtual LED count covered by the layout.
func (l Layout) Total() int {
	return l.Percussion + l.Bass + l.Melody
}

// NewLayout splits total LEDs by the configured zone fractions. Fractions
// are normalized; every zone gets at least one LED and the sizes always
// sum to total. total must be at least 3.
func NewLayout(total int, cfg config.BandsConfig) Layout {
	if total < 3 {
		total = 3
	}
	sum := cfg.ZonePercussion + cfg.ZoneBass + cfg.ZoneMelody
	if sum <= 0 {
		sum = 3
		cfg.ZonePercussion, cfg.ZoneBass, cfg.ZoneMelody = 1, 1, 1
	}

	p := int(float64(total) * cfg.ZonePercussion / sum)
	b := int(float64(total) * cfg.ZoneBass / sum)
	if p < 1 {
		p = 1
	}
	if b < 1 {
		b = 1
	}
	m := total - p - b
	for m < 1 {
		if p > b && p > 1 {
			p--
		} else if b > 1 {
			b--
		} else {
			break
		}
		m = total - p - b
	}
	return Layout{Percussion: p, Bass: b, Melody: m}
}
