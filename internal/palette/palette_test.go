package palette

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

// testArt builds a 60x60 cover split into three solid vertical thirds.
func testArt(t *testing.T, left, mid, right color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			switch {
			case x < 20:
				img.Set(x, y, left)
			case x < 40:
				img.Set(x, y, mid)
			default:
				img.Set(x, y, right)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func artServer(t *testing.T, art []byte, downloads *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*downloads++
		w.Header().Set("Content-Type", "image/png")
		w.Write(art)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBandColors_FromArt(t *testing.T) {
	art := testArt(t,
		color.RGBA{220, 30, 30, 255},
		color.RGBA{30, 200, 40, 255},
		color.RGBA{40, 40, 230, 255})
	downloads := 0
	srv := artServer(t, art, &downloads)

	e := New(config.DefaultConfig().Bands, nil, zap.NewNop())
	bc, err := e.BandColors(context.Background(), srv.URL+"/cover.png")
	if err != nil {
		t.Fatal(err)
	}

	def := models.BandColors{Percussion: DefaultColor, Bass: DefaultColor, Melody: DefaultColor}
	if bc == def {
		t.Fatal("got default colors for a colorful cover")
	}
	if similar(bc.Percussion, bc.Bass, 1) || similar(bc.Bass, bc.Melody, 1) || similar(bc.Percussion, bc.Melody, 1) {
		t.Errorf("band colors not distinct: %+v", bc)
	}
}

func TestBandColors_MemoizedPerURL(t *testing.T) {
	art := testArt(t,
		color.RGBA{220, 30, 30, 255},
		color.RGBA{30, 200, 40, 255},
		color.RGBA{40, 40, 230, 255})
	downloads := 0
	srv := artServer(t, art, &downloads)

	e := New(config.DefaultConfig().Bands, nil, zap.NewNop())
	url := srv.URL + "/cover.png"

	first, err := e.BandColors(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.BandColors(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	if downloads != 1 {
		t.Errorf("cover downloaded %d times, want 1", downloads)
	}
	if first != second {
		t.Errorf("memoized colors differ: %+v vs %+v", first, second)
	}
}

func TestBandColors_EmptyURL(t *testing.T) {
	e := New(config.DefaultConfig().Bands, nil, zap.NewNop())
	bc, err := e.BandColors(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := models.BandColors{Percussion: DefaultColor, Bass: DefaultColor, Melody: DefaultColor}
	if bc != want {
		t.Errorf("BandColors = %+v, want defaults", bc)
	}
}

func TestBandColors_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := New(config.DefaultConfig().Bands, nil, zap.NewNop())
	bc, err := e.BandColors(context.Background(), srv.URL+"/missing.png")
	if err == nil {
		t.Fatal("expected error for missing art")
	}
	want := models.BandColors{Percussion: DefaultColor, Bass: DefaultColor, Melody: DefaultColor}
	if bc != want {
		t.Errorf("BandColors = %+v, want defaults on failure", bc)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "palette.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	in := []weighted{
		{models.RGB{R: 200, G: 10, B: 10}, 1200},
		{models.RGB{R: 10, G: 10, B: 180}, 400},
	}
	if err := store.Put("https://img.example/a.jpg", in, 0.72); err != nil {
		t.Fatal(err)
	}

	out, avgSat, ok := store.Get("https://img.example/a.jpg")
	if !ok {
		t.Fatal("cache miss after Put")
	}
	if avgSat != 0.72 {
		t.Errorf("avgSat = %v", avgSat)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("palette = %+v, want %+v", out, in)
	}

	if _, _, ok := store.Get("https://img.example/other.jpg"); ok {
		t.Error("unexpected hit for unknown url")
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := store.Get("https://img.example/a.jpg"); ok {
		t.Error("hit after Clear")
	}
}

func TestExtract_UsesPersistentStore(t *testing.T) {
	art := testArt(t,
		color.RGBA{220, 30, 30, 255},
		color.RGBA{30, 200, 40, 255},
		color.RGBA{40, 40, 230, 255})
	downloads := 0
	srv := artServer(t, art, &downloads)
	url := srv.URL + "/cover.png"

	store, err := OpenStore(filepath.Join(t.TempDir(), "palette.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	first := New(config.DefaultConfig().Bands, store, zap.NewNop())
	if _, err := first.BandColors(context.Background(), url); err != nil {
		t.Fatal(err)
	}

	// A fresh extractor sharing the store must not download again.
	second := New(config.DefaultConfig().Bands, store, zap.NewNop())
	if _, err := second.BandColors(context.Background(), url); err != nil {
		t.Fatal(err)
	}
	if downloads != 1 {
		t.Errorf("cover downloaded %d times, want 1", downloads)
	}
}

func TestSelectColors_AlwaysThree(t *testing.T) {
	colors := []weighted{
		{models.RGB{R: 200, G: 20, B: 20}, 500},
		{models.RGB{R: 20, G: 180, B: 20}, 300},
	}
	for _, strategy := range []string{"balanced", "vibrant", "max_saturation", "contrast", "adaptive"} {
		t.Run(strategy, func(t *testing.T) {
			got := selectColors(strategy, colors, 0.8, 0.5)
			if len(got) != 3 {
				t.Fatalf("got %d colors", len(got))
			}
		})
	}
}

func TestSelectColors_EmptyPalette(t *testing.T) {
	got := selectColors("contrast", nil, 0.8, 0)
	want := []models.RGB{DefaultColor, DefaultColor, DefaultColor}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got = %+v, want defaults", got)
		}
	}
}

func TestAssignBands(t *testing.T) {
	dark := models.RGB{R: 20, G: 20, B: 20}
	mid := models.RGB{R: 120, G: 120, B: 120}
	bright := models.RGB{R: 230, G: 230, B: 230}
	red := models.RGB{R: 220, G: 20, B: 20}

	t.Run("luminance", func(t *testing.T) {
		got := assignBands("luminance", []models.RGB{bright, dark, mid})
		want := models.BandColors{Percussion: dark, Bass: mid, Melody: bright}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
	t.Run("inverted", func(t *testing.T) {
		got := assignBands("inverted", []models.RGB{dark, bright, mid})
		want := models.BandColors{Percussion: bright, Bass: mid, Melody: dark}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
	t.Run("even keeps order", func(t *testing.T) {
		got := assignBands("even", []models.RGB{red, dark, bright})
		want := models.BandColors{Percussion: red, Bass: dark, Melody: bright}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
	t.Run("vibrant_bass puts saturated color on bass", func(t *testing.T) {
		got := assignBands("vibrant_bass", []models.RGB{bright, red, dark})
		if got.Bass != red {
			t.Errorf("Bass = %+v, want %+v", got.Bass, red)
		}
		if got.Percussion != dark || got.Melody != bright {
			t.Errorf("got %+v", got)
		}
	})
}

func TestBoost_KeepsHue(t *testing.T) {
	c := models.RGB{R: 140, G: 60, B: 60} // washed-out red
	h0, s0, _ := hsv(c)
	b := boost(c, 0.8)
	h1, s1, _ := hsv(b)

	if diff := h1 - h0; diff > 3 || diff < -3 {
		t.Errorf("hue moved from %.1f to %.1f", h0, h1)
	}
	if s1 <= s0 {
		t.Errorf("saturation not raised: %.2f -> %.2f", s0, s1)
	}
}

func TestMergeSimilar(t *testing.T) {
	colors := []weighted{
		{models.RGB{R: 200, G: 10, B: 10}, 100},
		{models.RGB{R: 210, G: 20, B: 15}, 60}, // near-identical red
		{models.RGB{R: 10, G: 10, B: 200}, 50},
	}
	merged := mergeSimilar(colors, 35)
	if len(merged) != 2 {
		t.Fatalf("len = %d, want 2", len(merged))
	}
	if merged[0].count != 160 {
		t.Errorf("merged count = %d, want 160", merged[0].count)
	}
}

func TestEnsureDistinct(t *testing.T) {
	c := models.RGB{R: 100, G: 100, B: 200}
	out := ensureDistinct([]models.RGB{c, c, c}, 40)
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	if out[1] == out[0] {
		t.Error("second color not nudged away from first")
	}
}
