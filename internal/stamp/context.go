package stamp

import (
	"errors"
	stdmath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/raster"
	"github.com/Faultbox/terrastamp/internal/terrain"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrReleased is returned when a released context is written to.
var ErrReleased = errors.New("stamp: context released")

// Context is the transient per-cycle state of one terrain: cleared
// height and splat buffers, the layer slot map and vegetation staging.
type Context struct {
	Terrain    terrain.Store
	Heights    *raster.Target
	Splats     []*raster.Target
	Layers     *layers.Allocator
	Vegetation *vegetation.Batch
	Device     compute.Device
	Log        *zap.Logger

	// Transform is the transform of the stamp being applied.
	Transform math.Transform

	released bool
}

// NewContext allocates cleared buffers sized for store and the current
// layer slots.
func NewContext(store terrain.Store, slots *layers.Allocator, dev compute.Device, log *zap.Logger) *Context {
	hr, sr := store.HeightResolution(), store.SplatResolution()
	splats := make([]*raster.Target, slots.BufferCount())
	for i := range splats {
		splats[i] = raster.NewTarget(sr, sr, terrain.SplatChannels)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		Terrain:    store,
		Heights:    raster.NewTarget(hr, hr, 1),
		Splats:     splats,
		Layers:     slots,
		Vegetation: vegetation.NewBatch(store.Name()),
		Device:     dev,
		Log:        log,
		Transform:  math.IdentityTransform(),
	}
}

// Released reports whether Release was called.
func (c *Context) Released() bool {
	return c.released
}

// Release drops the buffers. The context must not be used afterwards.
func (c *Context) Release() {
	c.Heights = nil
	c.Splats = nil
	c.Vegetation = nil
	c.released = true
}

// Commit copies the buffers into the terrain store.
func (c *Context) Commit() error {
	if c.released {
		return ErrReleased
	}
	hr := c.Heights.Width
	if err := c.Terrain.SetHeights(0, 0, hr, hr, c.Heights.Data); err != nil {
		return err
	}
	c.Terrain.EnsureSplatBuffers(len(c.Splats))
	for i, s := range c.Splats {
		if err := c.Terrain.SetSplat(i, 0, 0, s.Width, s.Height, s.Data); err != nil {
			return err
		}
	}
	return nil
}

// HeightAt returns the composed height in world units at terrain UV.
func (c *Context) HeightAt(uv math.Vec2) float32 {
	h := c.Heights
	fx := math.Clamp01(uv.X)*float32(h.Width) - 0.5
	fy := math.Clamp01(uv.Y)*float32(h.Height) - 0.5
	x0 := int(stdmath.Floor(float64(fx)))
	y0 := int(stdmath.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	at := func(x, y int) float32 {
		return h.At(min(max(x, 0), h.Width-1), min(max(y, 0), h.Height-1), 0)
	}
	top := math.Lerp(at(x0, y0), at(x0+1, y0), tx)
	bottom := math.Lerp(at(x0, y0+1), at(x0+1, y0+1), tx)
	return math.Lerp(top, bottom, ty) * c.Terrain.MaxHeight()
}

// SlopeAt returns the composed slope in degrees at terrain UV.
func (c *Context) SlopeAt(uv math.Vec2) float32 {
	size := c.Terrain.Bounds().Size
	du := 1 / float32(c.Heights.Width)
	dv := 1 / float32(c.Heights.Height)
	dx := (c.HeightAt(math.Vec2{X: uv.X + du, Y: uv.Y}) - c.HeightAt(math.Vec2{X: uv.X - du, Y: uv.Y})) / (2 * du * size.X)
	dz := (c.HeightAt(math.Vec2{X: uv.X, Y: uv.Y + dv}) - c.HeightAt(math.Vec2{X: uv.X, Y: uv.Y - dv})) / (2 * dv * size.Z)
	return float32(stdmath.Atan(float64(math.Sqrt(dx*dx+dz*dz))) * 180 / stdmath.Pi)
}
