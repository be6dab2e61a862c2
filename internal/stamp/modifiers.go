package stamp

import (
	"context"
	"fmt"

	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/raster"
)

// HeightModifier writes a data field into the height buffer.
type HeightModifier struct {
	Disabled bool
	Falloff  falloff.Config
	Blend    raster.BlendMode
	// Field is sampled in the stamp's local UV. Nil writes MaxValue.
	Field    field.Field
	MinValue float32
	MaxValue float32
}

func (m *HeightModifier) Pass() Pass    { return PassHeight }
func (m *HeightModifier) Enabled() bool { return !m.Disabled }

// Apply draws the stamp into the context's height buffer.
func (m *HeightModifier) Apply(ctx context.Context, wc *Context, t Target) error {
	if wc.Released() {
		return ErrReleased
	}
	d := raster.Draw{
		Quad:    t.Placement.Quad(),
		Mask:    t.Mask,
		Falloff: m.Falloff,
		Blend:   m.Blend,
		Source: &field.Source{
			Field:    m.Field,
			MinValue: m.MinValue,
			MaxValue: m.MaxValue,
		},
		MaxHeight: wc.Terrain.MaxHeight(),
	}
	return d.Execute(ctx, wc.Device, wc.Heights)
}

// SplatModifier paints one ground layer.
type SplatModifier struct {
	Disabled bool
	Layer    layers.ID
	Falloff  falloff.Config
	Blend    raster.BlendMode
	// Weight is the value written to the layer's channel at full intensity.
	Weight float32
}

func (m *SplatModifier) Pass() Pass          { return PassSplat }
func (m *SplatModifier) Enabled() bool       { return !m.Disabled }
func (m *SplatModifier) Layers() []layers.ID { return []layers.ID{m.Layer} }

// Apply draws a one-hot channel vector into the buffer holding the layer.
func (m *SplatModifier) Apply(ctx context.Context, wc *Context, t Target) error {
	if wc.Released() {
		return ErrReleased
	}
	idx := wc.Layers.Index(m.Layer)
	if idx < 0 {
		return fmt.Errorf("splat layer %q has no slot", m.Layer)
	}
	buffer, channel := layers.Channel(idx)
	if buffer >= len(wc.Splats) {
		return fmt.Errorf("splat layer %q: buffer %d not allocated", m.Layer, buffer)
	}

	d := raster.Draw{
		Quad:    t.Placement.Quad(),
		Mask:    t.Mask,
		Falloff: m.Falloff,
		Blend:   m.Blend,
	}
	d.Channels[channel] = m.Weight
	return d.Execute(ctx, wc.Device, wc.Splats[buffer])
}
