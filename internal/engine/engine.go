// Package engine runs the main sync loop: poll Spotify at an adaptive
// cadence, extract palette colors on track changes, render band frames at
// a capped FPS and push them to the LED hardware, with a breathing
// standby effect while nothing plays.
package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/audio"
	"github.com/spotrgb/agent/internal/bands"
	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/detect"
	"github.com/spotrgb/agent/internal/models"
	"github.com/spotrgb/agent/internal/monitor"
	"github.com/spotrgb/agent/internal/openrgb"
	"github.com/spotrgb/agent/internal/palette"
	"github.com/spotrgb/agent/internal/spotify"
)

// LEDClient is the slice of the OpenRGB client the engine drives.
type LEDClient interface {
	Connect(ctx context.Context) error
	Close() error
	Devices() []openrgb.Device
	SetDirect() error
	SetBreathing(color models.RGB) error
	UpdateDevice(ctx context.Context, id int, colors []models.RGB) error
}

// Engine wires the Spotify poller, palette extractor, visualizer and LED
// client together.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	spotify   *spotify.Client
	rgb       LEDClient
	extractor *palette.Extractor
	detector  *detect.Detector
	bridge    *monitor.Bridge
	source    audio.FrameSource // optional

	renderer *bands.Renderer
	analyzer *audio.Analyzer
	mapping  mapping

	levelsMu sync.Mutex
	levels   models.BandLevels

	track       *spotify.Track
	colors      models.BandColors
	lastArtURL  string
	breathPhase float64
	synthPhase  float64

	inHWStandby     bool
	hwStandbyBroken bool
}

// Options carries the engine's collaborators. Source and Bridge may be
// nil.
type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	Spotify   *spotify.Client
	RGB       LEDClient
	Extractor *palette.Extractor
	Detector  *detect.Detector
	Bridge    *monitor.Bridge
	Source    audio.FrameSource
}

// New assembles an engine. Connect and device layout happen in Run.
func New(opts Options) *Engine {
	bridge := opts.Bridge
	if bridge == nil {
		bridge = monitor.NewBridge()
	}
	return &Engine{
		cfg:       opts.Config,
		logger:    opts.Logger,
		spotify:   opts.Spotify,
		rgb:       opts.RGB,
		extractor: opts.Extractor,
		detector:  opts.Detector,
		bridge:    bridge,
		source:    opts.Source,
		colors: models.BandColors{
			Percussion: palette.DefaultColor,
			Bass:       palette.DefaultColor,
			Melody:     palette.DefaultColor,
		},
	}
}

// Devices exposes the enumerated LED devices for the monitor API.
func (e *Engine) Devices() []models.DeviceInfo {
	var out []models.DeviceInfo
	for _, d := range e.rgb.Devices() {
		out = append(out, models.DeviceInfo{
			Index:    d.ID,
			Name:     d.Name,
			Type:     d.Type,
			LEDs:     d.LEDs,
			Excluded: d.Excluded,
			BGR:      d.BGR,
		})
	}
	return out
}

// Run connects to the LED server and drives the loop until ctx is
// cancelled, then dims the strip and disconnects.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.rgb.Connect(ctx); err != nil {
		return err
	}
	defer e.rgb.Close()

	if err := e.rgb.SetDirect(); err != nil {
		e.logger.Warn("switching devices to direct mode failed", zap.Error(err))
	}

	devices := e.rgb.Devices()
	e.mapping = newMapping(devices, e.cfg.OpenRGB.LEDSkipStart, e.cfg.OpenRGB.LEDSkipEnd, e.cfg.OpenRGB.LEDCount)
	if e.mapping.physUsable == 0 {
		return errors.New("no usable LEDs on any device")
	}
	e.renderer = bands.New(e.cfg.Bands, e.mapping.virtualTotal)
	e.logger.Info("strip layout ready",
		zap.Int("devices", len(devices)),
		zap.Int("physical_leds", e.mapping.physUsable),
		zap.Int("virtual_leds", e.mapping.virtualTotal))

	if e.source != nil {
		e.analyzer = audio.NewAnalyzer(e.cfg.Audio, e.source.SampleRate())
		go e.consumeAudio(ctx)
	}

	e.loop(ctx)
	e.shutdownStrip()
	return nil
}

// consumeAudio runs the analyzer over incoming PCM frames.
func (e *Engine) consumeAudio(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-e.source.Frames():
			if !ok {
				e.logger.Warn("audio source closed")
				return
			}
			levels := e.analyzer.Analyze(frame)
			e.levelsMu.Lock()
			e.levels = levels
			e.levelsMu.Unlock()
		}
	}
}

func (e *Engine) loop(ctx context.Context) {
	pollTimer := time.NewTimer(0) // poll immediately on start
	defer pollTimer.Stop()

	frameTicker := time.NewTicker(e.framePeriod())
	defer frameTicker.Stop()
	activeFPS := e.playing()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTimer.C:
			pollTimer.Reset(e.poll(ctx))
		case <-frameTicker.C:
			e.renderFrame(ctx)
			if playing := e.playing(); playing != activeFPS {
				activeFPS = playing
				frameTicker.Reset(e.framePeriod())
			}
		}
	}
}

func (e *Engine) playing() bool {
	return e.track != nil && e.track.IsPlaying
}

func (e *Engine) framePeriod() time.Duration {
	fps := e.cfg.Render.StandbyFPS
	if e.playing() {
		fps = e.cfg.Render.MaxFPS
	}
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// poll refreshes playback state and returns the delay until the next
// poll.
func (e *Engine) poll(ctx context.Context) time.Duration {
	if e.cfg.Spotify.ProcessCheck && !e.detector.IsRunning(ctx) {
		if e.track != nil {
			e.logger.Info("player process gone, dropping to standby")
			e.setTrack(nil)
		}
		return e.cfg.Spotify.PollIdle.Duration
	}

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	track, err := e.spotify.CurrentlyPlaying(pollCtx)
	cancel()
	if err != nil {
		var rle *spotify.RateLimitError
		if errors.As(err, &rle) {
			e.logger.Warn("rate limited", zap.Duration("retry_after", rle.RetryAfter))
			return rle.RetryAfter
		}
		e.logger.Warn("playback poll failed", zap.Error(err))
		return e.cfg.Spotify.PollIdle.Duration
	}

	e.setTrack(track)
	return e.spotify.NextPollIn(track)
}

// setTrack handles track transitions: palette extraction, renderer reset
// and monitor updates.
func (e *Engine) setTrack(track *spotify.Track) {
	changed := trackID(track) != trackID(e.track)
	e.track = track

	if track == nil {
		e.bridge.SetTrack("", false)
		return
	}
	e.bridge.SetTrack(track.Artist+" - "+track.Name, track.IsPlaying)
	e.lastArtURL = track.AlbumArtURL
	if !changed {
		return
	}

	e.logger.Info("track changed",
		zap.String("artist", track.Artist),
		zap.String("title", track.Name))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	colors, err := e.extractor.BandColors(ctx, track.AlbumArtURL)
	if err == nil && e.cfg.Bands.ColorScheme != "album_colors" {
		colors = bands.DeriveScheme(e.cfg.Bands.ColorScheme, colors.Bass)
	}
	e.colors = colors
	if e.renderer != nil {
		e.renderer.Reset()
	}
	e.bridge.SetBands(models.BandLevels{}, colors)
}

func trackID(t *spotify.Track) string {
	if t == nil {
		return ""
	}
	return t.ID
}

// renderFrame produces and pushes one frame, publishing the levels it
// rendered to the monitor.
func (e *Engine) renderFrame(ctx context.Context) {
	if e.playing() {
		e.leaveHardwareStandby()
		levels := e.currentLevels()
		if e.analyzer != nil {
			e.renderer.SetDecayMult(e.analyzer.DecayMult(levels.Volume))
		}
		frame := e.renderer.Render(levels, e.colors)
		e.bridge.SetBands(levels, e.colors)
		e.pushFrame(ctx, frame)
		e.bridge.SetFrame(frame)
		return
	}

	if e.cfg.Render.StandbyMode == "hardware" && !e.hwStandbyBroken {
		e.enterHardwareStandby(ctx)
		if e.inHWStandby {
			return // the devices animate on their own
		}
	}
	frame := e.standbyFrame()
	e.pushFrame(ctx, frame)
	e.bridge.SetFrame(frame)
}

// enterHardwareStandby hands the standby animation to the devices' own
// breathing mode, colored from the last album art's dominant color. A
// failure falls back to software breathing for the rest of the run.
func (e *Engine) enterHardwareStandby(ctx context.Context) {
	if e.inHWStandby {
		return
	}
	color := e.colors.Bass
	if e.extractor != nil && e.lastArtURL != "" {
		dcCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if c, err := e.extractor.DominantColor(dcCtx, e.lastArtURL); err == nil {
			color = c
		}
		cancel()
	}
	if err := e.rgb.SetBreathing(color); err != nil {
		e.logger.Warn("hardware breathing unavailable, using software standby", zap.Error(err))
		e.hwStandbyBroken = true
		return
	}
	e.inHWStandby = true
}

// leaveHardwareStandby puts the devices back under direct control.
func (e *Engine) leaveHardwareStandby() {
	if !e.inHWStandby {
		return
	}
	e.inHWStandby = false
	if err := e.rgb.SetDirect(); err != nil {
		e.logger.Warn("switching devices back to direct mode failed", zap.Error(err))
	}
}

// currentLevels returns the latest analyzer reading, or a gentle
// synthetic pulse when no audio source is attached so the palette still
// shows.
func (e *Engine) currentLevels() models.BandLevels {
	if e.source != nil {
		e.levelsMu.Lock()
		defer e.levelsMu.Unlock()
		return e.levels
	}

	e.synthPhase += 0.02
	pulse := (math.Sin(e.synthPhase) + 1) / 2
	return models.BandLevels{
		Percussion: 0.35 + 0.25*pulse,
		Bass:       0.45 + 0.20*(1-pulse),
		Melody:     0.30 + 0.20*pulse,
		Volume:     0.5,
		State:      "idle",
		AGCGain:    1,
	}
}

// standbyFrame breathes the bass color across the whole strip.
func (e *Engine) standbyFrame() models.Frame {
	r := e.cfg.Render
	e.breathPhase += r.StandbyBreathSpeed
	breath := (math.Sin(e.breathPhase) + 1) / 2
	brightness := r.StandbyMin + (r.StandbyMax-r.StandbyMin)*breath

	led := e.colors.Bass.Scale(brightness)
	frame := make(models.Frame, e.mapping.virtualTotal)
	for i := range frame {
		frame[i] = led
	}
	return frame
}

func (e *Engine) pushFrame(ctx context.Context, frame models.Frame) {
	for id, devFrame := range e.mapping.distribute(frame) {
		if devFrame == nil {
			continue
		}
		if err := e.rgb.UpdateDevice(ctx, id, devFrame); err != nil {
			e.logger.Warn("frame push failed", zap.Int("device", id), zap.Error(err))
			return
		}
	}
}

// shutdownStrip dims everything to the brightness floor so the room is
// not left glowing at full blast.
func (e *Engine) shutdownStrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	e.leaveHardwareStandby()
	led := e.colors.Bass.Scale(e.cfg.Render.BrightnessFloor)
	frame := make(models.Frame, e.mapping.virtualTotal)
	for i := range frame {
		frame[i] = led
	}
	e.pushFrame(ctx, frame)
	e.logger.Info("strip dimmed for shutdown")
}
