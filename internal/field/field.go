// Package field provides the optional data sources a height modifier draws:
// an explicit heightmap, fractal noise, or a flat stand-in.
package field

import (
	"errors"
	"image"
	stdmath "math"

	"golang.org/x/image/draw"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrEmptyHeightmap is returned for heightmaps without samples.
var ErrEmptyHeightmap = errors.New("field: empty heightmap")

// Field returns a normalized value in [0, 1] at quad UV (u, v).
type Field interface {
	Sample(u, v float32) float32
}

// Flat is the "no variation" stand-in: it always reads 1, so the draw
// writes the source's MaxValue.
type Flat struct{}

// Sample implements Field.
func (Flat) Sample(u, v float32) float32 { return 1 }

// Source is a field remapped into world height units.
type Source struct {
	Field    Field
	MinValue float32
	MaxValue float32
}

// Value returns the field sample remapped to [MinValue, MaxValue] and
// normalized against the terrain's max height.
func (s *Source) Value(u, v, maxHeight float32) float32 {
	f := s.Field
	if f == nil {
		f = Flat{}
	}
	h := math.Lerp(s.MinValue, s.MaxValue, math.Clamp01(f.Sample(u, v)))
	return h / math.NonZero(maxHeight)
}

// Noise is hashed value noise summed over octaves.
type Noise struct {
	Seed        int64
	Frequency   float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
}

// DefaultNoise returns a four-octave noise with conventional ratios.
func DefaultNoise(seed int64) Noise {
	return Noise{
		Seed:        seed,
		Frequency:   4,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

// Sample implements Field.
func (n Noise) Sample(u, v float32) float32 {
	return float32(n.fractal(float64(u), float64(v))*0.5 + 0.5)
}

func (n Noise) fractal(x, y float64) float64 {
	frequency := n.Frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < max(n.Octaves, 1); i++ {
		noiseSum += valueNoise(x*frequency, y*frequency, n.Seed+int64(i)*7919) * amplitude
		maxAmplitude += amplitude
		amplitude *= n.Persistence
		frequency *= n.Lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func valueNoise(x, y float64, seed int64) float64 {
	x0 := int(stdmath.Floor(x))
	y0 := int(stdmath.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := smooth(x - float64(x0))
	sy := smooth(y - float64(y0))

	ix0 := lerp(random2D(x0, y0, seed), random2D(x1, y0, seed), sx)
	ix1 := lerp(random2D(x0, y1, seed), random2D(x1, y1, seed), sx)
	return lerp(ix0, ix1, sy)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// random2D returns a deterministic value in [-1, 1).
func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, seed)&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y int, seed int64) uint32 {
	h := uint64(seed)*0x9E3779B97F4A7C15 ^ uint64(int64(x))*0xBF58476D1CE4E5B9 ^ uint64(int64(y))*0x94D049BB133111EB
	h ^= h >> 31
	h *= 0xD6E8FEB86659FD93
	h ^= h >> 32
	return uint32(h)
}

// Heightmap is an explicit grid of normalized heights.
type Heightmap struct {
	Width   int
	Height  int
	Samples []float32
}

// NewHeightmap wraps row-major samples.
func NewHeightmap(width, height int, samples []float32) (*Heightmap, error) {
	if width <= 0 || height <= 0 || len(samples) < width*height {
		return nil, ErrEmptyHeightmap
	}
	return &Heightmap{Width: width, Height: height, Samples: samples}, nil
}

// HeightmapFromImage resamples the luminance of img to width x height.
func HeightmapFromImage(img image.Image, width, height int) (*Heightmap, error) {
	if img == nil || img.Bounds().Empty() || width <= 0 || height <= 0 {
		return nil, ErrEmptyHeightmap
	}
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	samples := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			samples[y*width+x] = float32(dst.Gray16At(x, y).Y) / 0xFFFF
		}
	}
	return &Heightmap{Width: width, Height: height, Samples: samples}, nil
}

// Resample returns a copy of h scaled to width x height.
func (h *Heightmap) Resample(width, height int) (*Heightmap, error) {
	return HeightmapFromImage(h.Image(), width, height)
}

// Image returns h as a 16-bit grayscale image.
func (h *Heightmap) Image() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, h.Width, h.Height))
	for i, s := range h.Samples[:h.Width*h.Height] {
		v := uint16(math.Clamp01(s)*0xFFFF + 0.5)
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img
}

// Sample implements Field with bilinear filtering; texel centres sit at
// (i+0.5)/size and coordinates clamp to the edges.
func (h *Heightmap) Sample(u, v float32) float32 {
	fx := math.Clamp01(u)*float32(h.Width) - 0.5
	fy := math.Clamp01(v)*float32(h.Height) - 0.5
	x0 := int(stdmath.Floor(float64(fx)))
	y0 := int(stdmath.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	top := math.Lerp(h.at(x0, y0), h.at(x0+1, y0), tx)
	bottom := math.Lerp(h.at(x0, y0+1), h.at(x0+1, y0+1), tx)
	return math.Lerp(top, bottom, ty)
}

func (h *Heightmap) at(x, y int) float32 {
	x = min(max(x, 0), h.Width-1)
	y = min(max(y, 0), h.Height-1)
	return h.Samples[y*h.Width+x]
}
