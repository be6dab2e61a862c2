package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a config value outside its allowed range.
var ErrInvalid = errors.New("invalid config")

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would make mask generation impossible.
func (c *Config) Validate() error {
	m := c.Masks
	if m.MinResolution <= 0 || m.MaxResolution < m.MinResolution {
		return fmt.Errorf("%w: mask resolution range [%d, %d]", ErrInvalid, m.MinResolution, m.MaxResolution)
	}
	if m.PixelsPerUnit <= 0 || m.SegmentLength <= 0 || m.BoundarySamplesPerUnit <= 0 {
		return fmt.Errorf("%w: mask density settings must be positive", ErrInvalid)
	}
	if m.GradientResolution <= 0 {
		return fmt.Errorf("%w: gradient resolution %d", ErrInvalid, m.GradientResolution)
	}
	if c.Compositor.ResyncDelay < 0 {
		return fmt.Errorf("%w: negative resync delay", ErrInvalid)
	}
	return nil
}

// findConfigFile returns ./config.yaml or the one in ConfigDir, whichever
// exists first.
func findConfigFile() string {
	for _, path := range []string{"config.yaml", filepath.Join(ConfigDir(), "config.yaml")} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Terrastamp")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Terrastamp")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "terrastamp")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "terrastamp")
	}
}

// loadFromFile overlays a YAML file onto cfg. Unknown keys are rejected
// so a misspelt setting does not silently fall back to its default.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
