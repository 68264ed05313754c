package palette

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sort"
	"time"

	"github.com/spotrgb/agent/internal/models"
)

const (
	downloadTimeout = 10 * time.Second
	sampleSize      = 80 // album art is downsampled to sampleSize² before quantization
	paletteSize     = 16
	mergeThreshold  = 35
)

// fetchImage downloads and decodes album art.
func (e *Extractor) fetchImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download album art: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("album art download returned %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode album art: %w", err)
	}
	return img, nil
}

// samplePixels box-averages the image down to at most sampleSize² pixels.
func samplePixels(img image.Image) []models.RGB {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	cols, rows := w, h
	if cols > sampleSize {
		cols = sampleSize
	}
	if rows > sampleSize {
		rows = sampleSize
	}

	pixels := make([]models.RGB, 0, cols*rows)
	for ry := 0; ry < rows; ry++ {
		for rx := 0; rx < cols; rx++ {
			x0 := bounds.Min.X + rx*w/cols
			x1 := bounds.Min.X + (rx+1)*w/cols
			y0 := bounds.Min.Y + ry*h/rows
			y1 := bounds.Min.Y + (ry+1)*h/rows

			var rSum, gSum, bSum, n uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					rSum += uint64(r >> 8)
					gSum += uint64(g >> 8)
					bSum += uint64(b >> 8)
					n++
				}
			}
			if n == 0 {
				continue
			}
			pixels = append(pixels, models.RGB{
				R: uint8(rSum / n),
				G: uint8(gSum / n),
				B: uint8(bSum / n),
			})
		}
	}
	return pixels
}

// bucket is one median-cut box of pixels.
type bucket struct {
	pixels []models.RGB
}

func (b *bucket) widestChannel() int {
	var minC, maxC [3]uint8
	for i := range minC {
		minC[i] = 255
	}
	for _, p := range b.pixels {
		ch := [3]uint8{p.R, p.G, p.B}
		for i, v := range ch {
			if v < minC[i] {
				minC[i] = v
			}
			if v > maxC[i] {
				maxC[i] = v
			}
		}
	}
	widest, span := 0, -1
	for i := range minC {
		if d := int(maxC[i]) - int(minC[i]); d > span {
			widest, span = i, d
		}
	}
	return widest
}

func channelOf(p models.RGB, ch int) uint8 {
	switch ch {
	case 0:
		return p.R
	case 1:
		return p.G
	default:
		return p.B
	}
}

func (b *bucket) average() weighted {
	var rSum, gSum, bSum uint64
	for _, p := range b.pixels {
		rSum += uint64(p.R)
		gSum += uint64(p.G)
		bSum += uint64(p.B)
	}
	n := uint64(len(b.pixels))
	return weighted{
		color: models.RGB{R: uint8(rSum / n), G: uint8(gSum / n), B: uint8(bSum / n)},
		count: int(n),
	}
}

// quantize runs median-cut down to at most paletteSize colors, returned in
// descending pixel-count order.
func quantize(pixels []models.RGB) []weighted {
	if len(pixels) == 0 {
		return nil
	}

	buckets := []*bucket{{pixels: pixels}}
	for len(buckets) < paletteSize {
		// Split the bucket with the most pixels that can still be split.
		sort.Slice(buckets, func(i, j int) bool {
			return len(buckets[i].pixels) > len(buckets[j].pixels)
		})
		target := buckets[0]
		if len(target.pixels) < 2 {
			break
		}

		ch := target.widestChannel()
		sort.Slice(target.pixels, func(i, j int) bool {
			return channelOf(target.pixels[i], ch) < channelOf(target.pixels[j], ch)
		})
		mid := len(target.pixels) / 2
		left := &bucket{pixels: target.pixels[:mid]}
		right := &bucket{pixels: target.pixels[mid:]}
		buckets = append(buckets[1:], left, right)
	}

	colors := make([]weighted, 0, len(buckets))
	for _, b := range buckets {
		if len(b.pixels) > 0 {
			colors = append(colors, b.average())
		}
	}
	sort.Slice(colors, func(i, j int) bool { return colors[i].count > colors[j].count })
	return colors
}

// mergeSimilar groups near-identical colors, keeping the more saturated
// representative of each group.
func mergeSimilar(colors []weighted, threshold float64) []weighted {
	var merged []weighted
	for _, wc := range colors {
		found := false
		for i, existing := range merged {
			if similar(wc.color, existing.color, threshold) {
				keep := existing.color
				if saturation(wc.color) > saturation(existing.color) {
					keep = wc.color
				}
				merged[i] = weighted{color: keep, count: existing.count + wc.count}
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, wc)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].count > merged[j].count })
	return merged
}
