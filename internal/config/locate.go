// Package config locates and reads the project-level files jog relies on:
// the task manifest and the task settings file. Both are discovered by
// searching upward from the working directory, with independent depth
// bounds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fixed file names discovered by upward search.
const (
	ManifestFileName = "jog.yaml"
	SettingsFileName = "jog.cfg"

	// SettingsPrefix names the settings sections: [jog:<task_name>].
	SettingsPrefix = "jog"
)

// Search bounds, in ancestor steps. The manifest and settings file are
// located independently and need not share a bound.
const (
	ManifestSearchDepth = 8
	SettingsSearchDepth = 16
)

// NotFoundError reports that a file was absent from startDir and every
// searched ancestor.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Could not find %s.", e.Name)
}

// Locate searches for fileName in startDir and then upward through at most
// maxDepth parent directories, stopping early at the filesystem root. It
// returns the absolute path of the first match, or a *NotFoundError.
//
// Locate is deterministic and side-effect-free.
func Locate(fileName, startDir string, maxDepth int) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving search root: %w", err)
	}

	for depth := 0; ; depth++ {
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		if depth >= maxDepth {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Filesystem root reached.
			break
		}
		dir = parent
	}

	return "", &NotFoundError{Name: fileName}
}
