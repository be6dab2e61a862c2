// Package falloff maps raw mask samples to blend intensities.
package falloff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// Curve shapes the remapped mask value.
type Curve int

// Supported curves.
const (
	Linear Curve = iota
	Smoothstep
	EaseIn
	EaseOut
	SmoothEaseInOut
)

var curveNames = map[Curve]string{
	Linear:          "linear",
	Smoothstep:      "smoothstep",
	EaseIn:          "ease_in",
	EaseOut:         "ease_out",
	SmoothEaseInOut: "smooth_ease_in_out",
}

// String returns the curve's config name.
func (c Curve) String() string {
	if name, ok := curveNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Curve(%d)", int(c))
}

// ParseCurve parses a curve name. The empty string is Linear.
func ParseCurve(s string) (Curve, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Linear, nil
	}
	for c, name := range curveNames {
		if name == s {
			return c, nil
		}
	}
	return Linear, fmt.Errorf("unknown falloff curve %q", s)
}

// Apply evaluates the curve at t in [0, 1].
func (c Curve) Apply(t float32) float32 {
	switch c {
	case Smoothstep:
		return t * t * (3 - 2*t)
	case EaseIn:
		return t * t
	case EaseOut:
		return 1 - (1-t)*(1-t)
	case SmoothEaseInOut:
		return t * t * t * (t*(6*t-15) + 10)
	default:
		return t
	}
}

// Config errors.
var (
	ErrIntensityRange = errors.New("falloff: min intensity exceeds max intensity")
	ErrMaskRange      = errors.New("falloff: mask min exceeds mask max")
)

// Config describes how a raw mask sample becomes an intensity.
type Config struct {
	MinIntensity float32 `yaml:"min_intensity"`
	MaxIntensity float32 `yaml:"max_intensity"`
	Curve        Curve   `yaml:"-"`
	MaskMin      float32 `yaml:"mask_min"`
	MaskMax      float32 `yaml:"mask_max"`
	// InnerFalloff is the fraction of the mask range below MaskMax that
	// saturates to full intensity.
	InnerFalloff float32 `yaml:"inner_falloff"`
}

// Default returns a linear full-range config.
func Default() Config {
	return Config{
		MinIntensity: 0,
		MaxIntensity: 1,
		Curve:        Linear,
		MaskMin:      0,
		MaskMax:      1,
	}
}

// Validate checks the ordering invariants.
func (c Config) Validate() error {
	if c.MinIntensity > c.MaxIntensity {
		return fmt.Errorf("%w: %v > %v", ErrIntensityRange, c.MinIntensity, c.MaxIntensity)
	}
	if c.MaskMin > c.MaskMax {
		return fmt.Errorf("%w: %v > %v", ErrMaskRange, c.MaskMin, c.MaskMax)
	}
	return nil
}

// Normalized returns c with swapped ranges fixed and InnerFalloff
// clamped to [0, 1].
func (c Config) Normalized() Config {
	if c.MinIntensity > c.MaxIntensity {
		c.MinIntensity, c.MaxIntensity = c.MaxIntensity, c.MinIntensity
	}
	if c.MaskMin > c.MaskMax {
		c.MaskMin, c.MaskMax = c.MaskMax, c.MaskMin
	}
	c.InnerFalloff = math.Clamp01(c.InnerFalloff)
	return c
}

// Evaluate maps a raw mask sample to an intensity in
// [MinIntensity, MaxIntensity]. The config is expected to be normalized.
func (c Config) Evaluate(raw float32) float32 {
	var t float32
	span := c.MaskMax - c.MaskMin
	if span < math.Epsilon {
		if raw >= c.MaskMax {
			t = 1
		}
	} else {
		t = (math.Clamp(raw, c.MaskMin, c.MaskMax) - c.MaskMin) / span
	}

	if c.InnerFalloff > 0 {
		t = math.Clamp01(t / math.NonZero(1-c.InnerFalloff))
	}

	t = c.Curve.Apply(math.Clamp01(t))
	return math.Clamp(math.Lerp(c.MinIntensity, c.MaxIntensity, t), c.MinIntensity, c.MaxIntensity)
}
