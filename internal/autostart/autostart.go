// Package autostart registers the agent to launch at user login.
// Each platform has its own manager: Windows uses a windowless launcher
// script copied into the Startup folder plus an HKCU Run value, Linux uses
// an XDG autostart .desktop entry, and macOS uses a per-user LaunchAgent.
package autostart

// AppName identifies the autostart entry across all platforms.
const AppName = "SpotifyRGBSync"

// Manager provides platform-specific autostart installation.
type Manager interface {
	IsInstalled() (bool, error)
	Install(execPath string) error
	Uninstall() error
	ServiceName() string
}
