//go:build linux || darwin

package setup

import (
	"os"
	"path/filepath"
)

// ResolvePaths returns the per-user install locations under
// ~/.config/spotrgb (or $XDG_CONFIG_HOME).
func ResolvePaths() Paths {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	base := filepath.Join(dir, "spotrgb")
	return Paths{
		ConfigDir:  base,
		ConfigPath: filepath.Join(base, "config.yaml"),
		DataDir:    filepath.Join(base, "data"),
		LogPath:    filepath.Join(base, "spotrgb.log"),
	}
}
