package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "ytdetox"

// GetXDGDataDir returns the XDG data directory for ytdetox.
// It respects XDG_DATA_HOME if set, otherwise falls back to ~/.local/share/ytdetox
func GetXDGDataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", appName), nil
}

// GetXDGStateDir returns the XDG state directory, where logs go.
func GetXDGStateDir() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "state", appName), nil
}
