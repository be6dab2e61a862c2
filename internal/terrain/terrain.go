// Package terrain holds the persistent buffers compositing writes into.
package terrain

import (
	"errors"
	"fmt"
	stdmath "math"
	"sync"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// SplatChannels is the number of layers packed into one splat buffer.
const SplatChannels = 4

// Errors returned by buffer writes.
var (
	ErrInvalidResolution = errors.New("terrain: invalid resolution")
	ErrRegionOutOfBounds = errors.New("terrain: region out of bounds")
	ErrSplatIndex        = errors.New("terrain: splat buffer index out of range")
)

// Store is the buffer store a compositing cycle copies into.
type Store interface {
	Name() string
	Bounds() math.Bounds
	MaxHeight() float32
	HeightResolution() int
	SplatResolution() int
	EnsureSplatBuffers(n int)
	SetHeights(x, y, w, h int, data []float32) error
	SetSplat(index, x, y, w, h int, data []float32) error
}

// Config describes a terrain's placement and buffer sizes.
type Config struct {
	Name string `yaml:"name"`
	// Origin is the world-space minimum corner.
	Origin math.Vec3 `yaml:"origin"`
	// Size is the world extent; Y is the maximum height.
	Size             math.Vec3 `yaml:"size"`
	HeightResolution int       `yaml:"height_resolution"`
	SplatResolution  int       `yaml:"splat_resolution"`
}

// Terrain is an in-memory Store. Heights are normalized to [0, 1] of the
// max height; splat buffers hold SplatChannels interleaved weights.
type Terrain struct {
	cfg      Config
	heights  []float32
	splats   [][]float32
	revision uint64
	mu       sync.RWMutex
}

// New validates cfg and allocates the height buffer.
func New(cfg Config) (*Terrain, error) {
	if cfg.HeightResolution <= 0 || cfg.SplatResolution <= 0 {
		return nil, fmt.Errorf("%w: height %d, splat %d", ErrInvalidResolution, cfg.HeightResolution, cfg.SplatResolution)
	}
	if cfg.Size.X <= 0 || cfg.Size.Z <= 0 {
		return nil, fmt.Errorf("terrain %q: size must be positive, got %v", cfg.Name, cfg.Size)
	}
	return &Terrain{
		cfg:     cfg,
		heights: make([]float32, cfg.HeightResolution*cfg.HeightResolution),
	}, nil
}

func (t *Terrain) Name() string           { return t.cfg.Name }
func (t *Terrain) Config() Config         { return t.cfg }
func (t *Terrain) MaxHeight() float32     { return t.cfg.Size.Y }
func (t *Terrain) HeightResolution() int  { return t.cfg.HeightResolution }
func (t *Terrain) SplatResolution() int   { return t.cfg.SplatResolution }

// Bounds returns the world box from the origin to origin+size.
func (t *Terrain) Bounds() math.Bounds {
	return math.BoundsFromMinMax(t.cfg.Origin, t.cfg.Origin.Add(t.cfg.Size))
}

// UV returns the normalized terrain coordinate of a world position.
func (t *Terrain) UV(p math.Vec3) math.Vec2 {
	return p.XZ().Sub(t.cfg.Origin.XZ()).Div(t.cfg.Size.XZ())
}

// SplatCount returns the number of allocated splat buffers.
func (t *Terrain) SplatCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.splats)
}

// EnsureSplatBuffers grows or shrinks the splat buffer list to n.
func (t *Terrain) EnsureSplatBuffers(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := t.cfg.SplatResolution * t.cfg.SplatResolution * SplatChannels
	for len(t.splats) < n {
		t.splats = append(t.splats, make([]float32, size))
	}
	t.splats = t.splats[:max(n, 0)]
}

// SetHeights overwrites the w x h region at (x, y).
func (t *Terrain) SetHeights(x, y, w, h int, data []float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.cfg.HeightResolution
	if err := checkRegion(res, x, y, w, h, len(data), 1); err != nil {
		return err
	}
	for row := 0; row < h; row++ {
		copy(t.heights[(y+row)*res+x:(y+row)*res+x+w], data[row*w:(row+1)*w])
	}
	t.revision++
	return nil
}

// SetSplat overwrites the w x h region at (x, y) of splat buffer index.
func (t *Terrain) SetSplat(index, x, y, w, h int, data []float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.splats) {
		return fmt.Errorf("%w: %d of %d", ErrSplatIndex, index, len(t.splats))
	}
	res := t.cfg.SplatResolution
	if err := checkRegion(res, x, y, w, h, len(data), SplatChannels); err != nil {
		return err
	}
	buf := t.splats[index]
	stride := w * SplatChannels
	for row := 0; row < h; row++ {
		start := ((y+row)*res + x) * SplatChannels
		copy(buf[start:start+stride], data[row*stride:(row+1)*stride])
	}
	t.revision++
	return nil
}

func checkRegion(res, x, y, w, h, n, channels int) error {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > res || y+h > res {
		return fmt.Errorf("%w: (%d,%d) %dx%d in %dx%d", ErrRegionOutOfBounds, x, y, w, h, res, res)
	}
	if n < w*h*channels {
		return fmt.Errorf("%w: %d values for %dx%d", ErrRegionOutOfBounds, n, w, h)
	}
	return nil
}

// Heights returns a copy of the normalized height buffer.
func (t *Terrain) Heights() []float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]float32(nil), t.heights...)
}

// Splat returns a copy of splat buffer index, or nil when out of range.
func (t *Terrain) Splat(index int) []float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.splats) {
		return nil
	}
	return append([]float32(nil), t.splats[index]...)
}

// Revision counts buffer writes.
func (t *Terrain) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// HeightAt returns the bilinearly interpolated world height at world
// (x, z). Positions outside the terrain clamp to its edge.
func (t *Terrain) HeightAt(worldX, worldZ float32) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.heightAt(worldX, worldZ)
}

func (t *Terrain) heightAt(worldX, worldZ float32) float32 {
	res := t.cfg.HeightResolution
	uv := t.UV(math.Vec3{X: worldX, Z: worldZ})

	// Texel centres sit at (i+0.5)/res.
	fx := math.Clamp01(uv.X)*float32(res) - 0.5
	fz := math.Clamp01(uv.Y)*float32(res) - 0.5
	cellX := int(stdmath.Floor(float64(fx)))
	cellZ := int(stdmath.Floor(float64(fz)))
	fracX := math.Clamp01(fx - float32(cellX))
	fracZ := math.Clamp01(fz - float32(cellZ))

	south := math.Lerp(t.texel(cellX, cellZ), t.texel(cellX+1, cellZ), fracX)
	north := math.Lerp(t.texel(cellX, cellZ+1), t.texel(cellX+1, cellZ+1), fracX)
	return math.Lerp(south, north, fracZ) * t.cfg.Size.Y
}

func (t *Terrain) texel(x, z int) float32 {
	res := t.cfg.HeightResolution
	x = min(max(x, 0), res-1)
	z = min(max(z, 0), res-1)
	return t.heights[z*res+x]
}

// SlopeAt returns the terrain slope in degrees at world (x, z) from
// central differences one texel apart.
func (t *Terrain) SlopeAt(worldX, worldZ float32) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stepX := t.cfg.Size.X / float32(t.cfg.HeightResolution)
	stepZ := t.cfg.Size.Z / float32(t.cfg.HeightResolution)
	dx := (t.heightAt(worldX+stepX, worldZ) - t.heightAt(worldX-stepX, worldZ)) / (2 * stepX)
	dz := (t.heightAt(worldX, worldZ+stepZ) - t.heightAt(worldX, worldZ-stepZ)) / (2 * stepZ)
	return float32(stdmath.Atan(float64(math.Sqrt(dx*dx+dz*dz))) * 180 / stdmath.Pi)
}
