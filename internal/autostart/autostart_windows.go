//go:build windows

package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// windowsManager installs a windowless launcher into the user Startup folder
// and registers it under the HKCU Run key. The Run key is what actually
// launches the agent; the Startup copy keeps the install visible in
// shell:startup for users who look there.
type windowsManager struct{}

// New returns a Manager for the current user's login session.
func New() Manager {
	return &windowsManager{}
}

// ServiceName returns the autostart entry name.
func (w *windowsManager) ServiceName() string { return AppName }

// StartupDir returns the per-user Startup folder.
func StartupDir() string {
	return filepath.Join(os.Getenv("APPDATA"),
		"Microsoft", "Windows", "Start Menu", "Programs", "Startup")
}

// IsInstalled checks whether the Run value exists.
func (w *windowsManager) IsInstalled() (bool, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return false, fmt.Errorf("opening Run key: %w", err)
	}
	defer key.Close()

	_, _, err = key.GetStringValue(AppName)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading Run value: %w", err)
	}
	return true, nil
}

// Install generates the launcher, copies it into the Startup folder, and
// points the Run value at it via wscript.
func (w *windowsManager) Install(execPath string) error {
	launcher, err := EnsureLauncher(execPath)
	if err != nil {
		return err
	}

	if err := InstallToStartup(launcher, StartupDir()); err != nil {
		return err
	}

	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("opening Run key: %w", err)
	}
	defer key.Close()

	cmd := fmt.Sprintf(`wscript.exe "%s"`, launcher)
	if err := key.SetStringValue(AppName, cmd); err != nil {
		return fmt.Errorf("setting Run value: %w", err)
	}
	return nil
}

// Uninstall removes the Run value, the Startup copy, and the generated
// launcher next to the binary.
func (w *windowsManager) Uninstall() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err == nil {
		if delErr := key.DeleteValue(AppName); delErr != nil && !errors.Is(delErr, registry.ErrNotExist) {
			key.Close()
			return fmt.Errorf("deleting Run value: %w", delErr)
		}
		key.Close()
	}

	startupCopy := filepath.Join(StartupDir(), AppName+".vbs")
	if err := os.Remove(startupCopy); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing startup copy: %w", err)
	}

	exe, err := os.Executable()
	if err == nil {
		launcher := filepath.Join(filepath.Dir(exe), launcherName)
		if err := os.Remove(launcher); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing launcher: %w", err)
		}
	}
	return nil
}
