// Package palette extracts LED colors from album art. The art is
// downsampled, median-cut quantized to a small palette, and a selection
// strategy picks three distinct colors for the visualizer zones. Extracted
// palettes are cached in memory and, when a store is configured, on disk.
package palette

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

// Extractor turns album art URLs into band colors.
type Extractor struct {
	cfg    config.BandsConfig
	http   *http.Client
	store  *Store
	logger *zap.Logger

	mu   sync.Mutex
	memo map[string]models.BandColors
}

// New creates an extractor. store may be nil to disable the persistent
// cache.
func New(cfg config.BandsConfig, store *Store, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		http:   &http.Client{Timeout: downloadTimeout},
		store:  store,
		logger: logger,
		memo:   make(map[string]models.BandColors),
	}
}

// BandColors returns the three zone colors for the given album art URL.
// An empty URL or any extraction failure yields the default colors along
// with the error, so callers can always render something.
func (e *Extractor) BandColors(ctx context.Context, artURL string) (models.BandColors, error) {
	fallback := models.BandColors{
		Percussion: DefaultColor,
		Bass:       DefaultColor,
		Melody:     DefaultColor,
	}
	if artURL == "" {
		return fallback, nil
	}

	e.mu.Lock()
	if bc, ok := e.memo[artURL]; ok {
		e.mu.Unlock()
		return bc, nil
	}
	e.mu.Unlock()

	colors, avgSat, err := e.extract(ctx, artURL)
	if err != nil {
		e.logger.Warn("palette extraction failed, using default colors",
			zap.String("url", artURL), zap.Error(err))
		return fallback, err
	}

	selected := selectColors(e.cfg.SelectionStrategy, colors, e.cfg.MinSaturation, avgSat)
	selected = ensureDistinct(selected, 40)
	bc := assignBands(e.cfg.AssignmentMode, selected)

	e.mu.Lock()
	e.memo[artURL] = bc
	e.mu.Unlock()

	e.logger.Debug("extracted band colors",
		zap.String("url", artURL),
		zap.Int("palette_size", len(colors)),
		zap.Float64("avg_saturation", avgSat))
	return bc, nil
}

// DominantColor returns the most frequent palette color of the art,
// boosted for LED visibility. Used for single-color breathing modes.
func (e *Extractor) DominantColor(ctx context.Context, artURL string) (models.RGB, error) {
	if artURL == "" {
		return DefaultColor, nil
	}
	colors, _, err := e.extract(ctx, artURL)
	if err != nil || len(colors) == 0 {
		return DefaultColor, err
	}
	return boost(colors[0].color, e.cfg.MinSaturation), nil
}

// extract returns the merged palette for the URL, consulting the
// persistent store before downloading.
func (e *Extractor) extract(ctx context.Context, artURL string) ([]weighted, float64, error) {
	if e.store != nil {
		if colors, avgSat, ok := e.store.Get(artURL); ok {
			return colors, avgSat, nil
		}
	}

	img, err := e.fetchImage(ctx, artURL)
	if err != nil {
		return nil, 0, err
	}
	pixels := samplePixels(img)
	colors := mergeSimilar(quantize(pixels), mergeThreshold)
	avgSat := averageSaturation(pixels)

	if e.store != nil {
		if err := e.store.Put(artURL, colors, avgSat); err != nil {
			e.logger.Warn("palette cache write failed", zap.Error(err))
		}
	}
	return colors, avgSat, nil
}

// ClearCache drops the in-memory memo and, if present, the persistent
// store contents.
func (e *Extractor) ClearCache() error {
	e.mu.Lock()
	e.memo = make(map[string]models.BandColors)
	e.mu.Unlock()
	if e.store != nil {
		return e.store.Clear()
	}
	return nil
}

func averageSaturation(pixels []models.RGB) float64 {
	if len(pixels) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pixels {
		sum += saturation(p)
	}
	return sum / float64(len(pixels))
}
