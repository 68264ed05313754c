// Package setup implements the install/remove/status CLI surface: it
// scaffolds the per-user config and data directories and registers the
// agent to launch at login.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spotrgb/agent/internal/autostart"
	"github.com/spotrgb/agent/internal/config"
)

// Paths are the per-user locations the agent installs into.
type Paths struct {
	ConfigDir  string
	ConfigPath string
	DataDir    string
	LogPath    string
}

// Install scaffolds directories, writes a default config if none exists,
// and registers the login autostart entry. Running it again over an
// existing installation is safe.
func Install(version string, mgr autostart.Manager, paths Paths) error {
	fmt.Printf("\nSpotify RGB Sync Setup %s\n\n", version)

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	execPath, err = filepath.Abs(filepath.Clean(execPath))
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	// The install is per-user; an elevated shell registers it for the
	// elevated user's profile, which is rarely what people want.
	if IsElevated() {
		fmt.Println("  ! Running elevated: registering for the elevated user's profile")
	}

	for _, dir := range []string{paths.ConfigDir, paths.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
		fmt.Printf("  ✓ Created %s\n", dir)
	}

	if _, err := os.Stat(paths.ConfigPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		cfg.Cache.DBPath = filepath.Join(paths.DataDir, "palette.db")
		cfg.Logging.File = paths.LogPath
		if err := config.WriteConfig(cfg, paths.ConfigPath); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("  ✓ Written config → %s\n", paths.ConfigPath)
		fmt.Println("    (add Spotify credentials to a .env file next to it)")
	} else {
		fmt.Printf("  ✓ Keeping existing config → %s\n", paths.ConfigPath)
	}

	if err := mgr.Install(execPath); err != nil {
		return fmt.Errorf("registering autostart: %w", err)
	}
	fmt.Printf("  ✓ Registered login launch (%s)\n", mgr.ServiceName())

	fmt.Println("\nDone! The agent will start at next login.")
	return nil
}

// Remove unregisters the login launch. Config and cached data are kept so
// a reinstall picks them back up.
func Remove(mgr autostart.Manager) error {
	if err := mgr.Uninstall(); err != nil {
		return fmt.Errorf("removing autostart: %w", err)
	}
	fmt.Printf("Removed login launch (%s). Config and cache were kept.\n", mgr.ServiceName())
	return nil
}

// Status prints whether the login launch is registered. The returned bool
// mirrors the printed state for the caller's exit code.
func Status(mgr autostart.Manager) (bool, error) {
	installed, err := mgr.IsInstalled()
	if err != nil {
		return false, fmt.Errorf("checking autostart: %w", err)
	}
	if installed {
		fmt.Printf("%s: registered to launch at login\n", mgr.ServiceName())
	} else {
		fmt.Printf("%s: not registered\n", mgr.ServiceName())
	}
	return installed, nil
}
