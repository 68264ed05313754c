//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("LOCALAPPDATA"), "SpotifyRGBSync", "config.yaml"),
	}
}
