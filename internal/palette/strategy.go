package palette

import (
	"sort"

	"github.com/spotrgb/agent/internal/models"
)

// The selection strategies pick the three band colors out of the extracted
// palette. They only ever reuse colors that exist in the art; boosting
// changes saturation and value but never hue.

type scored struct {
	color models.RGB
	count int
	sat   float64
}

// boost raises saturation so the color stays visible on LEDs.
// minSat is the configured saturation floor.
func boost(c models.RGB, minSat float64) models.RGB {
	h, s, v := hsv(c)

	// Practically grey, nothing to rescue.
	if s < 0.05 {
		return c
	}

	if s < minSat {
		s = minSat
	}
	switch {
	case s < 0.40:
		s = min64(0.92, s*2.2)
	case s < 0.65:
		s = min64(0.95, s*1.6)
	}

	// Keep value out of the invisible and the washed-out extremes.
	if v < 0.30 {
		v = 0.42
	} else if v > 0.95 {
		v = 0.88
	}

	return fromHSV(h, s, v)
}

// separateChromatic splits colors into those with usable hue and greys.
func separateChromatic(colors []weighted, minSat float64) (chromatic []scored, achromatic []weighted) {
	for _, wc := range colors {
		sat := saturation(wc.color)
		lum := luminance(wc.color)
		switch {
		case sat > minSat:
			chromatic = append(chromatic, scored{wc.color, wc.count, sat})
		case sat > 0.06 && lum > 0.15 && lum < 0.85:
			chromatic = append(chromatic, scored{wc.color, wc.count, sat})
		default:
			achromatic = append(achromatic, wc)
		}
	}
	return
}

// pickDistinct takes up to three boosted colors that are visually distinct.
func pickDistinct(candidates []scored, minSat, threshold float64) []models.RGB {
	var selected []models.RGB
	for _, cand := range candidates {
		boosted := boost(cand.color, minSat)
		distinct := true
		for _, s := range selected {
			if similar(boosted, s, threshold) {
				distinct = false
				break
			}
		}
		if distinct {
			selected = append(selected, boosted)
			if len(selected) >= 3 {
				break
			}
		}
	}
	return selected
}

// fillRemaining pads the selection to three colors with value variations of
// the first, or the default color when nothing was selected at all.
func fillRemaining(selected []models.RGB) []models.RGB {
	for len(selected) < 3 {
		if len(selected) == 0 {
			selected = append(selected, DefaultColor)
			continue
		}
		h, s, v := hsv(selected[0])
		offset := float64(len(selected)) * 0.25
		var nv float64
		if len(selected)%2 == 1 {
			nv = max64(0.25, v-offset)
		} else {
			nv = min64(0.95, v+offset)
		}
		selected = append(selected, fromHSV(h, s, nv))
	}
	return selected[:3]
}

// appendAchromatic tops up a short selection with greys that are still
// distinct from what is already there.
func appendAchromatic(selected []models.RGB, achromatic []weighted, threshold float64) []models.RGB {
	for _, wc := range achromatic {
		if len(selected) >= 3 {
			break
		}
		distinct := true
		for _, s := range selected {
			if similar(wc.color, s, threshold) {
				distinct = false
				break
			}
		}
		if distinct {
			selected = append(selected, wc.color)
		}
	}
	return selected
}

// selectWeighted scores chromatic colors by frequency and saturation with
// the given weights, shared by the balanced and vibrant strategies.
func selectWeighted(colors []weighted, minSat, chromaticFloor, freqWeight, satWeight float64) []models.RGB {
	if len(colors) == 0 {
		return []models.RGB{DefaultColor, DefaultColor, DefaultColor}
	}
	chromatic, achromatic := separateChromatic(colors, chromaticFloor)

	if len(chromatic) > 0 {
		maxCount := 0
		for _, c := range chromatic {
			if c.count > maxCount {
				maxCount = c.count
			}
		}
		sort.SliceStable(chromatic, func(i, j int) bool {
			si := float64(chromatic[i].count)/float64(maxCount)*freqWeight + chromatic[i].sat*satWeight
			sj := float64(chromatic[j].count)/float64(maxCount)*freqWeight + chromatic[j].sat*satWeight
			return si > sj
		})
	}

	selected := pickDistinct(chromatic, minSat, 50)
	selected = appendAchromatic(selected, achromatic, 50)
	return fillRemaining(selected)
}

// selectBalanced weights frequency 60/40 over saturation. Good for albums
// with a defined palette; can wash out on pastel art.
func selectBalanced(colors []weighted, minSat float64) []models.RGB {
	return selectWeighted(colors, minSat, 0.12, 0.6, 0.4)
}

// selectVibrant weights saturation 75/25 over frequency. The liveliest
// colors of the cover dominate, which suits LEDs.
func selectVibrant(colors []weighted, minSat float64) []models.RGB {
	return selectWeighted(colors, minSat, 0.08, 0.25, 0.75)
}

// selectMaxSaturation orders purely by saturation, ignoring frequency.
func selectMaxSaturation(colors []weighted, minSat float64) []models.RGB {
	if len(colors) == 0 {
		return []models.RGB{DefaultColor, DefaultColor, DefaultColor}
	}
	var chromatic []scored
	for _, wc := range colors {
		if s := saturation(wc.color); s > 0.06 {
			chromatic = append(chromatic, scored{wc.color, wc.count, s})
		}
	}
	sort.SliceStable(chromatic, func(i, j int) bool { return chromatic[i].sat > chromatic[j].sat })
	return fillRemaining(pickDistinct(chromatic, minSat, 55))
}

// selectContrast brute-forces the triplet with the largest total visual
// distance, weighted towards saturated triplets. At most 12 candidates,
// so C(12,3)=220 combinations.
func selectContrast(colors []weighted, minSat float64) []models.RGB {
	if len(colors) == 0 {
		return []models.RGB{DefaultColor, DefaultColor, DefaultColor}
	}

	var candidates []models.RGB
	for _, wc := range colors {
		if saturation(wc.color) > 0.06 {
			candidates = append(candidates, boost(wc.color, minSat))
		}
	}
	if len(candidates) < 3 {
		for _, wc := range colors {
			candidates = append(candidates, wc.color)
			if len(candidates) >= 3 {
				break
			}
		}
	}
	if len(candidates) < 3 {
		return fillRemaining(candidates)
	}
	if len(candidates) > 12 {
		candidates = candidates[:12]
	}

	best := []models.RGB{candidates[0], candidates[1], candidates[2]}
	bestScore := -1.0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			for k := j + 1; k < len(candidates); k++ {
				c1, c2, c3 := candidates[i], candidates[j], candidates[k]
				dist := distance(c1, c2) + distance(c2, c3) + distance(c1, c3)
				avgSat := (saturation(c1) + saturation(c2) + saturation(c3)) / 3
				score := dist * (0.4 + avgSat*0.6)
				if score > bestScore {
					bestScore = score
					best = []models.RGB{c1, c2, c3}
				}
			}
		}
	}
	return best
}

// selectAdaptive picks a strategy from the album's average saturation:
// colorful art keeps balanced, pastel art gets vibrant, desaturated art
// falls back to max saturation.
func selectAdaptive(colors []weighted, minSat, avgSat float64) []models.RGB {
	switch {
	case avgSat > 0.45:
		return selectBalanced(colors, minSat)
	case avgSat > 0.20:
		return selectVibrant(colors, minSat)
	default:
		return selectMaxSaturation(colors, minSat)
	}
}

// selectColors dispatches on the configured strategy name; unknown names
// fall back to vibrant.
func selectColors(strategy string, colors []weighted, minSat, avgSat float64) []models.RGB {
	switch strategy {
	case "balanced":
		return selectBalanced(colors, minSat)
	case "max_saturation":
		return selectMaxSaturation(colors, minSat)
	case "contrast":
		return selectContrast(colors, minSat)
	case "adaptive":
		return selectAdaptive(colors, minSat, avgSat)
	default:
		return selectVibrant(colors, minSat)
	}
}

// ensureDistinct nudges the value of colors that sit too close together.
func ensureDistinct(colors []models.RGB, minDistance float64) []models.RGB {
	if len(colors) < 2 {
		return colors
	}
	result := []models.RGB{colors[0]}
	for _, c := range colors[1:] {
		adjusted := c
		for _, existing := range result {
			if distance(adjusted, existing) >= minDistance {
				continue
			}
			h, s, v := hsv(adjusted)
			_, _, ev := hsv(existing)
			if ev > 0.6 {
				v = max64(0.3, v-0.3)
			} else {
				v = min64(0.9, v+0.3)
			}
			adjusted = fromHSV(h, s, v)
			break
		}
		result = append(result, adjusted)
	}
	return result
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
