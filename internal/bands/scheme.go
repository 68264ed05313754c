package bands

import (
	"github.com/spotrgb/agent/internal/models"
	"github.com/spotrgb/agent/internal/palette"
)

// DeriveScheme builds the three zone colors from a single base color when
// the configured scheme is not album_colors. Unknown scheme names fall
// back to triadic.
func DeriveScheme(scheme string, base models.RGB) models.BandColors {
	switch scheme {
	case "analogous":
		return models.BandColors{
			Percussion: palette.RotateHue(base, -30),
			Bass:       base,
			Melody:     palette.RotateHue(base, 30),
		}
	case "complement":
		return models.BandColors{
			Percussion: palette.RotateHue(base, 180),
			Bass:       base,
			Melody:     palette.Saturate(palette.RotateHue(base, 180), 0.6),
		}
	case "split":
		return models.BandColors{
			Percussion: palette.RotateHue(base, 150),
			Bass:       base,
			Melody:     palette.RotateHue(base, 210),
		}
	case "monochrome":
		return models.BandColors{
			Percussion: palette.AdjustBrightness(base, 0.35),
			Bass:       base,
			Melody:     palette.AdjustBrightness(base, 0.8),
		}
	case "warm_cool":
		return models.BandColors{
			Percussion: palette.ShiftHueToward(base, 30, 0.7),
			Bass:       base,
			Melody:     palette.ShiftHueToward(base, 210, 0.7),
		}
	default: // triadic
		return models.BandColors{
			Percussion: palette.RotateHue(base, -120),
			Bass:       base,
			Melody:     palette.RotateHue(base, 120),
		}
	}
}
