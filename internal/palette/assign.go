package palette

import (
	"sort"

	"github.com/spotrgb/agent/internal/models"
)

// assignBands maps three selected colors to the percussion, bass and melody
// zones according to the configured mode.
func assignBands(mode string, colors []models.RGB) models.BandColors {
	c := make([]models.RGB, 3)
	copy(c, fillRemaining(colors))

	switch mode {
	case "luminance":
		// Darkest at the bottom, brightest at the top.
		sort.SliceStable(c, func(i, j int) bool { return luminance(c[i]) < luminance(c[j]) })
		return models.BandColors{Percussion: c[0], Bass: c[1], Melody: c[2]}
	case "even":
		// Selection order as-is.
		return models.BandColors{Percussion: c[0], Bass: c[1], Melody: c[2]}
	case "inverted":
		sort.SliceStable(c, func(i, j int) bool { return luminance(c[i]) > luminance(c[j]) })
		return models.BandColors{Percussion: c[0], Bass: c[1], Melody: c[2]}
	default:
		// vibrant_bass: the most saturated color goes to the bass zone,
		// the remaining two are ordered dark-to-bright.
		sort.SliceStable(c, func(i, j int) bool { return saturation(c[i]) > saturation(c[j]) })
		bass := c[0]
		rest := []models.RGB{c[1], c[2]}
		sort.SliceStable(rest, func(i, j int) bool { return luminance(rest[i]) < luminance(rest[j]) })
		return models.BandColors{Percussion: rest[0], Bass: bass, Melody: rest[1]}
	}
}
