// Package raster draws stamp masks into terrain-space buffers.
//
// A draw is an orthographic top-down pass over the destination: every
// texel inside the quad footprint is mapped back to the stamp's local UV,
// the mask and optional data field are sampled there, the falloff turns
// the mask sample into an intensity and the blend mode folds the result
// into the destination.
package raster

import (
	"context"
	"fmt"
	stdmath "math"
	"strings"

	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ProgramQuad names the per-row draw dispatch.
const ProgramQuad = "quad_raster"

// BlendMode selects how a draw combines with the destination.
type BlendMode int

// Blend modes.
const (
	Add BlendMode = iota
	Subtract
	Replace
)

var blendNames = [...]string{
	Add:      "add",
	Subtract: "subtract",
	Replace:  "replace",
}

func (b BlendMode) String() string {
	if int(b) >= 0 && int(b) < len(blendNames) {
		return blendNames[b]
	}
	return fmt.Sprintf("BlendMode(%d)", int(b))
}

// ParseBlendMode parses a blend mode name.
func ParseBlendMode(s string) (BlendMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range blendNames {
		if name == s {
			return BlendMode(i), nil
		}
	}
	return Add, fmt.Errorf("unknown blend mode %q", s)
}

// Blend combines dst with src at intensity alpha and clamps to [0, 1].
func Blend(mode BlendMode, dst, src, alpha float32) float32 {
	var v float32
	switch mode {
	case Add:
		v = dst + src*alpha
	case Subtract:
		v = dst - src*alpha
	default:
		v = dst*(1-alpha) + src*alpha
	}
	return math.Clamp01(v)
}

// Target is a row-major interleaved float buffer in terrain UV space.
type Target struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// NewTarget allocates a zeroed target.
func NewTarget(width, height, channels int) *Target {
	return &Target{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]float32, width*height*channels),
	}
}

// At returns channel c of texel (x, y).
func (t *Target) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// Set writes channel c of texel (x, y).
func (t *Target) Set(x, y, c int, v float32) {
	t.Data[(y*t.Width+x)*t.Channels+c] = v
}

// Clear zeroes the target.
func (t *Target) Clear() {
	clear(t.Data)
}

// Draw is the parameter block of one stamp/modifier pass.
type Draw struct {
	Quad    Quad
	Mask    *mask.Mask
	Falloff falloff.Config
	Blend   BlendMode

	// Source supplies the written value for single-channel height draws.
	// A nil Source writes 1.
	Source    *field.Source
	MaxHeight float32

	// Channels is the per-channel value for multi-channel draws; channels
	// with zero weight are left untouched.
	Channels [4]float32
}

// Execute draws into dst. Rows are dispatched on dev when it is non-nil.
func (d *Draw) Execute(ctx context.Context, dev compute.Device, dst *Target) error {
	if !d.Quad.Valid() || d.Mask == nil || d.Mask.Empty() {
		return nil
	}
	x0, y0, x1, y1 := d.texelRange(dst)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	cfg := d.Falloff.Normalized()

	kernel := func(r0, r1 int) error {
		for y := y0 + r0; y < y0+r1; y++ {
			v := (float32(y) + 0.5) / float32(dst.Height)
			for x := x0; x < x1; x++ {
				u := (float32(x) + 0.5) / float32(dst.Width)
				local, ok := d.Quad.Local(math.Vec2{X: u, Y: v})
				if !ok {
					continue
				}
				alpha := cfg.Evaluate(d.Mask.Sample(local.X, local.Y))
				d.blend(dst, x, y, local, alpha)
			}
		}
		return nil
	}

	if dev == nil {
		return kernel(0, y1-y0)
	}
	_, err := dev.Dispatch(ctx, ProgramQuad, y1-y0, kernel).Wait()
	return err
}

func (d *Draw) blend(dst *Target, x, y int, local math.Vec2, alpha float32) {
	i := (y*dst.Width + x) * dst.Channels
	if dst.Channels == 1 {
		src := float32(1)
		if d.Source != nil {
			src = d.Source.Value(local.X, local.Y, d.MaxHeight)
		}
		dst.Data[i] = Blend(d.Blend, dst.Data[i], src, alpha)
		return
	}
	for c := 0; c < min(dst.Channels, 4); c++ {
		if w := d.Channels[c]; w != 0 {
			dst.Data[i+c] = Blend(d.Blend, dst.Data[i+c], w, alpha)
		}
	}
}

// texelRange clips the quad footprint to dst, in texels.
func (d *Draw) texelRange(dst *Target) (x0, y0, x1, y1 int) {
	lo, hi := d.Quad.Footprint()
	x0 = max(int(stdmath.Floor(float64(lo.X*float32(dst.Width)))), 0)
	y0 = max(int(stdmath.Floor(float64(lo.Y*float32(dst.Height)))), 0)
	x1 = min(int(stdmath.Ceil(float64(hi.X*float32(dst.Width)))), dst.Width)
	y1 = min(int(stdmath.Ceil(float64(hi.Y*float32(dst.Height)))), dst.Height)
	return x0, y0, x1, y1
}
