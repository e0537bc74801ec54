// Package settings manages persistent user settings for the routelab CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences.
type Settings struct {
	// DefaultServer is the GNS3 server URL used when -s is not specified.
	DefaultServer string `json:"default_server,omitempty"`

	// DefaultProject is the GNS3 project used when -p is not specified.
	DefaultProject string `json:"default_project,omitempty"`

	// CaptureDir overrides the default capture output directory.
	CaptureDir string `json:"capture_dir,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "routelab_settings.json"
	}
	return filepath.Join(home, ".routelab", "settings.json")
}

// Load reads settings from the default location.
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file is not an
// error; it yields empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to the default location.
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetCaptureDir returns the capture directory (with fallback).
func (s *Settings) GetCaptureDir() string {
	if s.CaptureDir != "" {
		return s.CaptureDir
	}
	return "captures"
}

// Clear resets all settings to defaults.
func (s *Settings) Clear() {
	*s = Settings{}
}
