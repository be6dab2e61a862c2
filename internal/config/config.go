// Package config handles terrastamp configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/terrastamp/internal/shape"
)

// Config holds all engine settings.
type Config struct {
	Masks      MasksConfig      `yaml:"masks"`
	Compositor CompositorConfig `yaml:"compositor"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MasksConfig holds mask generation settings.
type MasksConfig struct {
	MinResolution          int     `yaml:"min_resolution"`
	MaxResolution          int     `yaml:"max_resolution"`
	PixelsPerUnit          float32 `yaml:"pixels_per_unit"`
	BlurRadius             float32 `yaml:"blur_radius"`
	SegmentLength          float32 `yaml:"segment_length"`            // Ribbon segment target length in world units
	BoundarySamplesPerUnit float32 `yaml:"boundary_samples_per_unit"` // Region outline density
	JumpFlood              bool    `yaml:"jump_flood"`                // Use the multi-pass distance field
	GradientResolution     int     `yaml:"gradient_resolution"`       // Shared radial gradient size
}

// Settings converts the section to shape generation settings.
func (m MasksConfig) Settings() shape.Settings {
	return shape.Settings{
		MinResolution:          m.MinResolution,
		MaxResolution:          m.MaxResolution,
		PixelsPerUnit:          m.PixelsPerUnit,
		BlurRadius:             m.BlurRadius,
		SegmentLength:          m.SegmentLength,
		BoundarySamplesPerUnit: m.BoundarySamplesPerUnit,
		JumpFlood:              m.JumpFlood,
	}
}

// CompositorConfig holds cycle scheduling settings.
type CompositorConfig struct {
	ResyncDelay time.Duration `yaml:"resync_delay"`
	Parallelism int           `yaml:"parallelism"` // Concurrent mask generations, 0 = GOMAXPROCS
	Workers     int           `yaml:"workers"`     // Compute device row bands, 0 = GOMAXPROCS
}

// OutputConfig holds export settings.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Preview      bool   `yaml:"preview"`
	PreviewScale int    `yaml:"preview_scale"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	s := shape.DefaultSettings()
	return &Config{
		Masks: MasksConfig{
			MinResolution:          s.MinResolution,
			MaxResolution:          s.MaxResolution,
			PixelsPerUnit:          s.PixelsPerUnit,
			BlurRadius:             s.BlurRadius,
			SegmentLength:          s.SegmentLength,
			BoundarySamplesPerUnit: s.BoundarySamplesPerUnit,
			JumpFlood:              s.JumpFlood,
			GradientResolution:     256,
		},
		Compositor: CompositorConfig{
			ResyncDelay: 250 * time.Millisecond,
		},
		Output: OutputConfig{
			Dir:          "out",
			Preview:      true,
			PreviewScale: 2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
