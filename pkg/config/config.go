package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/james-see/pianodaw/pkg/timing"
)

// Config holds user preferences that outlive a session.
type Config struct {
	UndoDepth   int     `json:"undoDepth"`
	Tempo       float64 `json:"tempo"`
	Grid        string  `json:"grid"`
	Strength    float64 `json:"strength"`
	Swing       float64 `json:"swing"`
	ExportPPQ   int     `json:"exportPPQ"`
	Port        int     `json:"port"`
	MIDIOut     string  `json:"midiOut,omitempty"`
	LogLevel    string  `json:"logLevel"`
	LastProject string  `json:"lastProject,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		UndoDepth: 100,
		Tempo:     120,
		Grid:      "1/16",
		Strength:  1,
		Swing:     0.5,
		ExportPPQ: 480,
		Port:      8080,
		LogLevel:  "info",
	}
}

// GridTicks resolves Grid, falling back to a sixteenth.
func (c *Config) GridTicks() int64 {
	g, err := timing.ParseGridSize(c.Grid)
	if err != nil {
		return timing.GridSixteenth.Ticks()
	}
	return g.Ticks()
}

// normalize replaces unusable values with defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.UndoDepth <= 0 {
		c.UndoDepth = d.UndoDepth
	}
	if c.Tempo <= 0 {
		c.Tempo = d.Tempo
	}
	if c.Grid == "" {
		c.Grid = d.Grid
	}
	c.Strength = min(max(c.Strength, 0), 1)
	if c.Swing <= 0 || c.Swing > 1 {
		c.Swing = d.Swing
	}
	if c.ExportPPQ <= 0 || c.ExportPPQ > 0x7fff {
		c.ExportPPQ = d.ExportPPQ
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = d.Port
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pianodaw"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
