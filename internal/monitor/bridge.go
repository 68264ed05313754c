// Package monitor exposes live engine state to external UIs: a
// thread-safe bridge the engine writes into, and an HTTP/websocket server
// that serves it.
package monitor

import (
	"sync"
	"time"

	"github.com/spotrgb/agent/internal/models"
)

// Bridge is the shared live state between the engine's render loop and
// the monitor server. All methods are safe for concurrent use.
type Bridge struct {
	mu   sync.RWMutex
	snap models.Snapshot

	frames      int
	windowStart time.Time
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{windowStart: time.Now()}
}

// SetTrack records the current track and play state.
func (b *Bridge) SetTrack(track string, playing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Track = track
	b.snap.IsPlaying = playing
	b.snap.LastUpdate = time.Now()
}

// SetBands records the latest analyzer reading and zone colors.
func (b *Bridge) SetBands(levels models.BandLevels, colors models.BandColors) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Bands = levels
	b.snap.BandColors = colors
	b.snap.LastUpdate = time.Now()
}

// SetFrame records the rendered LED frame and advances the FPS counter.
func (b *Bridge) SetFrame(frame models.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.LEDColors = append(b.snap.LEDColors[:0], frame...)
	b.snap.LEDCount = len(frame)
	b.snap.LastUpdate = time.Now()

	b.frames++
	if elapsed := time.Since(b.windowStart); elapsed >= time.Second {
		b.snap.FPS = float64(b.frames) / elapsed.Seconds()
		b.frames = 0
		b.windowStart = time.Now()
	}
}

// Snapshot returns a copy of the current state. The LED slice is copied
// so callers can serialize it without racing the render loop.
func (b *Bridge) Snapshot() models.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := b.snap
	snap.LEDColors = append([]models.RGB(nil), b.snap.LEDColors...)
	return snap
}
