//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const desktopTemplate = `[Desktop Entry]
Type=Application
Name=Spotify RGB Sync
Comment=Sync RGB lighting with Spotify playback
Exec={execPath}
Terminal=false
X-GNOME-Autostart-enabled=true
`

// linuxManager writes an XDG autostart .desktop entry for the current user.
type linuxManager struct {
	desktopPath string
}

// New returns a Manager that uses the XDG autostart directory.
func New() Manager {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return &linuxManager{
		desktopPath: filepath.Join(dir, "autostart", AppName+".desktop"),
	}
}

// ServiceName returns the autostart entry name.
func (l *linuxManager) ServiceName() string { return AppName }

// IsInstalled checks whether the .desktop entry exists.
func (l *linuxManager) IsInstalled() (bool, error) {
	_, err := os.Stat(l.desktopPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking desktop entry: %w", err)
	}
	return true, nil
}

// Install writes the .desktop entry, overwriting any previous one.
func (l *linuxManager) Install(execPath string) error {
	if err := os.MkdirAll(filepath.Dir(l.desktopPath), 0755); err != nil {
		return fmt.Errorf("creating autostart directory: %w", err)
	}
	entry := strings.ReplaceAll(desktopTemplate, "{execPath}", execPath)
	if err := os.WriteFile(l.desktopPath, []byte(entry), 0644); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("writing desktop entry: %w (try running elevated)", err)
		}
		return fmt.Errorf("writing desktop entry: %w", err)
	}
	return nil
}

// Uninstall removes the .desktop entry.
func (l *linuxManager) Uninstall() error {
	if err := os.Remove(l.desktopPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing desktop entry: %w", err)
	}
	return nil
}
