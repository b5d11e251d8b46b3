package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the data directory.
const AppName = "T2IBackend"

// GetDataDirectory returns %APPDATA%\T2IBackend on Windows and
// ~/.t2i-backend elsewhere. It does not create the directory.
func GetDataDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".t2i-backend"
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "AppData", "Roaming", AppName)
	}
	return filepath.Join(home, ".t2i-backend")
}

// EnsureDataDirectory creates dir with owner-only permissions.
func EnsureDataDirectory(dir string) error {
	return os.MkdirAll(dir, 0700)
}
