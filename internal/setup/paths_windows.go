//go:build windows

package setup

import (
	"os"
	"path/filepath"
)

// ResolvePaths returns the per-user install locations under
// %LOCALAPPDATA%\SpotifyRGBSync.
func ResolvePaths() Paths {
	base := filepath.Join(os.Getenv("LOCALAPPDATA"), "SpotifyRGBSync")
	return Paths{
		ConfigDir:  base,
		ConfigPath: filepath.Join(base, "config.yaml"),
		DataDir:    filepath.Join(base, "data"),
		LogPath:    filepath.Join(base, "spotrgb.log"),
	}
}
