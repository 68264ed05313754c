package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/audio"
	"github.com/spotrgb/agent/internal/bands"
	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
	"github.com/spotrgb/agent/internal/openrgb"
	"github.com/spotrgb/agent/internal/spotify"
)

// fakeLED records what the engine asks of the LED client.
type fakeLED struct {
	devices   []openrgb.Device
	updates   map[int][]models.RGB
	breathing []models.RGB
	breathErr error
	direct    int
}

func (f *fakeLED) Connect(ctx context.Context) error { return nil }

func (f *fakeLED) Close() error { return nil }

func (f *fakeLED) Devices() []openrgb.Device { return f.devices }

func (f *fakeLED) SetDirect() error {
	f.direct++
	return nil
}

func (f *fakeLED) SetBreathing(color models.RGB) error {
	f.breathing = append(f.breathing, color)
	return f.breathErr
}

func (f *fakeLED) UpdateDevice(ctx context.Context, id int, colors []models.RGB) error {
	if f.updates == nil {
		f.updates = map[int][]models.RGB{}
	}
	f.updates[id] = append([]models.RGB(nil), colors...)
	return nil
}

func testEngine(cfg *config.Config, fake *fakeLED) *Engine {
	e := New(Options{Config: cfg, Logger: zap.NewNop(), RGB: fake})
	e.mapping = newMapping(fake.devices, 0, 0, 0)
	e.renderer = bands.New(cfg.Bands, e.mapping.virtualTotal)
	return e
}

func stripDevice() []openrgb.Device {
	return []openrgb.Device{{ID: 0, Name: "Strip", Type: "ledstrip", LEDs: 12}}
}

func TestRenderFrame_PublishesLevels(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := &fakeLED{devices: stripDevice()}
	e := testEngine(cfg, fake)
	e.track = &spotify.Track{ID: "t1", IsPlaying: true}

	e.renderFrame(context.Background())

	snap := e.bridge.Snapshot()
	if snap.Bands.Volume == 0 {
		t.Error("monitor never saw the rendered levels")
	}
	if snap.BandColors.Bass != e.colors.Bass {
		t.Errorf("band colors = %+v, want %+v", snap.BandColors.Bass, e.colors.Bass)
	}
	if snap.LEDCount != 12 {
		t.Errorf("LED count = %d, want 12", snap.LEDCount)
	}
	if len(fake.updates[0]) != 12 {
		t.Errorf("device frame length = %d, want 12", len(fake.updates[0]))
	}
}

func TestRenderFrame_SoftwareStandbyByDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := &fakeLED{devices: stripDevice()}
	e := testEngine(cfg, fake)

	e.renderFrame(context.Background())

	if len(fake.breathing) != 0 {
		t.Error("software standby switched device modes")
	}
	if len(fake.updates[0]) != 12 {
		t.Errorf("standby frame length = %d, want 12", len(fake.updates[0]))
	}
}

func TestRenderFrame_HardwareStandby(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.StandbyMode = "hardware"
	fake := &fakeLED{devices: stripDevice()}
	e := testEngine(cfg, fake)
	ctx := context.Background()

	e.renderFrame(ctx)
	e.renderFrame(ctx)

	if len(fake.breathing) != 1 {
		t.Fatalf("breathing calls = %d, want one", len(fake.breathing))
	}
	if fake.breathing[0] != e.colors.Bass {
		t.Errorf("breathing color = %+v, want %+v", fake.breathing[0], e.colors.Bass)
	}
	if len(fake.updates) != 0 {
		t.Error("frames pushed while the hardware animates")
	}

	// Playback resumes: back under direct control, streaming frames.
	e.track = &spotify.Track{ID: "t1", IsPlaying: true}
	e.renderFrame(ctx)
	if fake.direct != 1 {
		t.Errorf("SetDirect calls = %d, want 1", fake.direct)
	}
	if len(fake.updates[0]) != 12 {
		t.Error("no frame streamed after leaving standby")
	}
}

func TestRenderFrame_HardwareStandbyFallsBack(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.StandbyMode = "hardware"
	fake := &fakeLED{devices: stripDevice(), breathErr: errors.New("connection lost")}
	e := testEngine(cfg, fake)
	ctx := context.Background()

	e.renderFrame(ctx)
	if len(fake.updates[0]) != 12 {
		t.Error("software fallback frame not pushed")
	}

	// The failure sticks; breathing is not retried every frame.
	e.renderFrame(ctx)
	if len(fake.breathing) != 1 {
		t.Errorf("breathing calls = %d, want one", len(fake.breathing))
	}
}

// fakeSource satisfies audio.FrameSource; the test feeds levels directly.
type fakeSource struct {
	rate int
	ch   chan []float64
}

func (s *fakeSource) SampleRate() int { return s.rate }

func (s *fakeSource) Frames() <-chan []float64 { return s.ch }

func (s *fakeSource) Close() error { return nil }

func TestRenderFrame_AdaptiveDecayAtLowVolume(t *testing.T) {
	run := func(adaptive bool) models.RGB {
		cfg := config.DefaultConfig()
		cfg.Bands.ColorLerp = 1
		cfg.Bands.ZoneBlendWidth = 0
		cfg.Bands.InternalGradient = 0
		cfg.Audio.AdaptiveSmoothing = adaptive

		fake := &fakeLED{devices: stripDevice()}
		e := testEngine(cfg, fake)
		e.track = &spotify.Track{ID: "t1", IsPlaying: true}
		e.source = &fakeSource{rate: 44100}
		e.analyzer = audio.NewAnalyzer(cfg.Audio, 44100)
		e.colors = models.BandColors{
			Percussion: models.RGB{R: 255},
			Bass:       models.RGB{R: 255},
			Melody:     models.RGB{R: 255},
		}

		ctx := context.Background()
		e.levels = models.BandLevels{Percussion: 1, Bass: 1, Melody: 1, Volume: 1}
		for i := 0; i < 30; i++ {
			e.renderFrame(ctx)
		}
		e.levels = models.BandLevels{} // silence
		for i := 0; i < 5; i++ {
			e.renderFrame(ctx)
		}
		return fake.updates[0][0]
	}

	withAdaptive := run(true)
	fixed := run(false)
	if withAdaptive.R <= fixed.R {
		t.Errorf("adaptive release %+v not slower than fixed release %+v",
			withAdaptive, fixed)
	}
}
