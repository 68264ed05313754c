// Package detect checks whether the Spotify client process is running, so
// the engine can skip API polls and drop to standby while the player is
// closed.
package detect

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// cacheTTL limits how often the process table is scanned; a render loop
// asking every frame would be wasteful.
const cacheTTL = 5 * time.Second

// Detector scans the process table for the configured player process.
type Detector struct {
	name   string
	logger *zap.Logger

	lastScan   time.Time
	lastResult bool
}

// New creates a detector for the given process name (matched
// case-insensitively as a prefix, so "spotify" matches Spotify.exe).
func New(name string, logger *zap.Logger) *Detector {
	return &Detector{name: strings.ToLower(name), logger: logger}
}

// IsRunning reports whether the player process exists. Results are cached
// for a short interval.
func (d *Detector) IsRunning(ctx context.Context) bool {
	if d.name == "" {
		return true
	}
	if time.Since(d.lastScan) < cacheTTL {
		return d.lastResult
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		d.logger.Debug("process scan failed", zap.Error(err))
		// Assume present on scan failure so playback is not interrupted.
		return true
	}

	found := false
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), d.name) {
			found = true
			break
		}
	}

	d.lastScan = time.Now()
	d.lastResult = found
	return found
}
