package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Settings is an immutable key/value view scoped to one task, sourced from
// the [jog:<task_name>] section of the project's settings file. A zero
// Settings is a valid, empty view.
type Settings struct {
	section *ini.Section
}

// TaskSettings locates the settings file upward from startDir and returns
// the view scoped to taskName. A missing file or missing section yields an
// empty view, never an error; only an unreadable or malformed settings file
// is an error.
func TaskSettings(startDir, taskName string) (Settings, error) {
	path, err := Locate(SettingsFileName, startDir, SettingsSearchDepth)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return Settings{}, nil
		}
		return Settings{}, err
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
	}, path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading %s: %w", SettingsFileName, err)
	}

	name := SettingsPrefix + ":" + taskName
	if !file.HasSection(name) {
		return Settings{}, nil
	}

	section, err := file.GetSection(name)
	if err != nil {
		return Settings{}, nil
	}
	return Settings{section: section}, nil
}

// Has reports whether the view contains key.
func (s Settings) Has(key string) bool {
	return s.section != nil && s.section.HasKey(key)
}

// Get returns the string value for key, or fallback if absent.
func (s Settings) Get(key, fallback string) string {
	if !s.Has(key) {
		return fallback
	}
	return s.section.Key(key).String()
}

// Bool returns the boolean value for key, or fallback if absent or not a
// recognised boolean. Accepts the usual INI spellings (1/0, true/false,
// yes/no, on/off).
func (s Settings) Bool(key string, fallback bool) bool {
	if !s.Has(key) {
		return fallback
	}
	switch strings.ToLower(s.section.Key(key).String()) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// Lines splits a multi-line value into its lines, trimming whitespace and
// dropping blanks. An absent key yields nil. Used for list-like settings
// such as exclusion patterns and version-bump target paths.
func (s Settings) Lines(key string) []string {
	if !s.Has(key) {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(s.section.Key(key).String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Keys lists the keys present in the view, in file order.
func (s Settings) Keys() []string {
	if s.section == nil {
		return nil
	}
	return s.section.KeyStrings()
}
