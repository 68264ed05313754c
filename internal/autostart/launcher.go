package autostart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// launcherName is the generated launcher file kept next to the binary.
const launcherName = "startup.vbs"

// launcherTemplate is the windowless WScript launcher. Line 3 carries the
// working directory so an install can be traced back to where it came from.
// Run's second argument 0 hides the window; False means don't wait.
const launcherTemplate = `' {appName} launcher (auto-generated)
Set shell = CreateObject("WScript.Shell")
shell.CurrentDirectory = "{dir}"
shell.Run """{execPath}""", 0, False
`

// LauncherContent renders the launcher script for the given executable.
// Output is deterministic for a given path.
func LauncherContent(execPath string) string {
	dir := filepath.Dir(execPath)
	s := strings.ReplaceAll(launcherTemplate, "{appName}", AppName)
	s = strings.ReplaceAll(s, "{dir}", dir)
	return strings.ReplaceAll(s, "{execPath}", execPath)
}

// EnsureLauncher writes the launcher script next to the executable if it
// does not already exist, and returns its path. An existing file is left
// untouched whatever its content, so a user-edited launcher survives
// reinstalls. The flip side is that the content is never refreshed when the
// install directory changes; Uninstall removes it so a clean reinstall
// regenerates it.
func EnsureLauncher(execPath string) (string, error) {
	path := filepath.Join(filepath.Dir(execPath), launcherName)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking launcher: %w", err)
	}

	if err := os.WriteFile(path, []byte(LauncherContent(execPath)), 0644); err != nil {
		return "", fmt.Errorf("writing launcher: %w", err)
	}
	return path, nil
}

// InstallToStartup copies the launcher into the startup directory,
// overwriting any previous copy. The launcher file itself is not rolled
// back on failure. A permission failure usually means the shell needs
// elevation; the error says so.
func InstallToStartup(launcherPath, startupDir string) error {
	dst := filepath.Join(startupDir, AppName+".vbs")

	in, err := os.Open(launcherPath)
	if err != nil {
		return fmt.Errorf("opening launcher: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("copying launcher to %s: %w (try running elevated)", startupDir, err)
		}
		return fmt.Errorf("copying launcher to %s: %w", startupDir, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying launcher: %w", err)
	}
	return nil
}
