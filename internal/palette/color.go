package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/spotrgb/agent/internal/models"
)

// DefaultColor is the fallback when no usable palette exists (deep purple,
// visible on most LED hardware).
var DefaultColor = models.RGB{R: 100, G: 0, B: 200}

// weighted is one extracted color with its pixel count.
type weighted struct {
	color models.RGB
	count int
}

func toColorful(c models.RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}

func fromColorful(c colorful.Color) models.RGB {
	clamped := c.Clamped()
	return models.RGB{
		R: uint8(clamped.R*255 + 0.5),
		G: uint8(clamped.G*255 + 0.5),
		B: uint8(clamped.B*255 + 0.5),
	}
}

// hsv returns hue in degrees [0,360) and s, v in [0,1].
func hsv(c models.RGB) (float64, float64, float64) {
	return toColorful(c).Hsv()
}

func fromHSV(h, s, v float64) models.RGB {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return fromColorful(colorful.Hsv(h, clamp01(s), clamp01(v)))
}

// saturation of a color in [0,1].
func saturation(c models.RGB) float64 {
	_, s, _ := hsv(c)
	return s
}

// luminance is perceived brightness in [0,1] (Rec. 601 weights).
func luminance(c models.RGB) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// distance is the euclidean RGB distance on the 0-255 scale.
func distance(a, b models.RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func similar(a, b models.RGB, threshold float64) bool {
	return distance(a, b) < threshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AdjustBrightness sets the color's value while keeping hue and saturation.
func AdjustBrightness(c models.RGB, brightness float64) models.RGB {
	h, s, _ := hsv(c)
	return fromHSV(h, s, clamp01(brightness))
}

// RotateHue rotates the color's hue by the given number of degrees.
func RotateHue(c models.RGB, degrees float64) models.RGB {
	h, s, v := hsv(c)
	return fromHSV(h+degrees, s, v)
}

// Saturate multiplies the color's saturation, clamped to [0,1].
func Saturate(c models.RGB, mult float64) models.RGB {
	h, s, v := hsv(c)
	return fromHSV(h, clamp01(s*mult), v)
}

// ShiftHueToward moves the hue a fraction of the way to target degrees,
// taking the short way around the wheel.
func ShiftHueToward(c models.RGB, target, amount float64) models.RGB {
	h, s, v := hsv(c)
	diff := math.Mod(target-h+540, 360) - 180
	return fromHSV(h+diff*clamp01(amount), s, v)
}

// ShiftToWhite moves a color towards white by the given amount in [0,1].
func ShiftToWhite(c models.RGB, shift float64) models.RGB {
	return models.RGB{
		R: shift8(c.R, shift),
		G: shift8(c.G, shift),
		B: shift8(c.B, shift),
	}
}

func shift8(v uint8, shift float64) uint8 {
	x := float64(v) + (255-float64(v))*shift
	if x > 255 {
		return 255
	}
	return uint8(x)
}
