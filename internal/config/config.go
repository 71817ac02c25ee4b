// Package config implements JSON-file-backed settings for the emulator
// shell: window/video options, debug flags, and filesystem paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration.
type Config struct {
	Window WindowConfig `json:"window"`
	Video  VideoConfig  `json:"video"`
	Debug  DebugConfig  `json:"debug"`
	Paths  PathsConfig  `json:"paths"`

	configPath string
}

// WindowConfig contains window-related configuration.
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Scale      int  `json:"scale"` // NES resolution multiplier
}

// VideoConfig contains video rendering configuration.
type VideoConfig struct {
	VSync   bool   `json:"vsync"`
	Filter  string `json:"filter"`  // "nearest", "linear"
	Backend string `json:"backend"` // "ebitengine", "headless", "terminal"
}

// DebugConfig contains debugging and development options.
type DebugConfig struct {
	EnableLogging bool   `json:"enable_logging"`
	DumpFrames    bool   `json:"dump_frames"`
	DumpDir       string `json:"dump_dir"`
}

// PathsConfig contains file and directory paths.
type PathsConfig struct {
	ROMs string `json:"roms"`
	Logs string `json:"logs"`
}

// New creates a configuration populated with defaults.
func New() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  512,
			Height: 480,
			Scale:  2,
		},
		Video: VideoConfig{
			VSync:   true,
			Filter:  "nearest",
			Backend: "ebitengine",
		},
		Debug: DebugConfig{
			EnableLogging: false,
			DumpFrames:    false,
			DumpDir:       "./debug_frames",
		},
		Paths: PathsConfig{
			ROMs: "./roms",
			Logs: "./logs",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. A missing file is not
// an error: defaults are written to path and returned instead.
func LoadFromFile(path string) (*Config, error) {
	cfg := New()
	cfg.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, cfg.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.validate()
	return cfg, nil
}

// SaveToFile writes the configuration to path as indented JSON.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	c.configPath = path
	return nil
}

// validate clamps out-of-range values to sane defaults rather than failing.
func (c *Config) validate() {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		c.Window.Width, c.Window.Height = 512, 480
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}
	switch c.Video.Backend {
	case "ebitengine", "headless", "terminal":
	default:
		c.Video.Backend = "ebitengine"
	}
}

// GetNESResolution returns the native NES frame buffer resolution.
func (c *Config) GetNESResolution() (int, int) {
	return 256, 240
}

// GetWindowResolution returns the window resolution at the configured scale.
func (c *Config) GetWindowResolution() (int, int) {
	w, h := c.GetNESResolution()
	return w * c.Window.Scale, h * c.Window.Scale
}

// ConfigPath returns the path this configuration was loaded from or saved
// to, or "" if neither has happened yet.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	return "./config/gones.json"
}
