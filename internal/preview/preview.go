// Package preview renders terrain buffers and masks to PNG for inspection.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/stamp"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrEmptyBuffer is returned when there is nothing to render.
var ErrEmptyBuffer = errors.New("preview: empty buffer")

// Outline is a stamp footprint in terrain UV.
type Outline struct {
	Label   string
	Corners [4]math.Vec2
}

// StampOutline returns the footprint of s on a terrain. Stamps that cover
// their whole terrain report false.
func StampOutline(s *stamp.Stamp, terrains []math.Bounds, terrain math.Bounds) (Outline, bool) {
	if s.Shape == nil || !s.Shape.Oriented() {
		return Outline{}, false
	}
	q := s.Placement(s.WorldBounds(terrains), terrain).Quad()
	if !q.Valid() {
		return Outline{}, false
	}
	return Outline{Label: s.ID, Corners: q.Corners()}, true
}

// heightRamp is a hypsometric tint, low to high.
var heightRamp = []color.RGBA{
	{R: 32, G: 64, B: 112, A: 255},
	{R: 70, G: 120, B: 60, A: 255},
	{R: 150, G: 140, B: 90, A: 255},
	{R: 120, G: 100, B: 90, A: 255},
	{R: 245, G: 245, B: 245, A: 255},
}

// LayerPalette colors splat layers by global slot index.
var LayerPalette = []color.RGBA{
	{R: 90, G: 160, B: 70, A: 255},
	{R: 200, G: 180, B: 120, A: 255},
	{R: 130, G: 130, B: 130, A: 255},
	{R: 110, G: 80, B: 50, A: 255},
	{R: 60, G: 110, B: 170, A: 255},
	{R: 220, G: 220, B: 230, A: 255},
	{R: 170, G: 90, B: 60, A: 255},
	{R: 40, G: 90, B: 40, A: 255},
}

// HeightImage tints normalized heights with a hypsometric ramp.
func HeightImage(heights []float32, res int) (*image.RGBA, error) {
	if res <= 0 || len(heights) < res*res {
		return nil, ErrEmptyBuffer
	}
	img := image.NewRGBA(image.Rect(0, 0, res, res))
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			img.SetRGBA(x, y, ramp(heights[y*res+x]))
		}
	}
	return img, nil
}

func ramp(h float32) color.RGBA {
	t := math.Clamp01(h) * float32(len(heightRamp)-1)
	i := min(int(t), len(heightRamp)-2)
	f := t - float32(i)
	a, b := heightRamp[i], heightRamp[i+1]
	mix := func(x, y uint8) uint8 { return uint8(math.Lerp(float32(x), float32(y), f) + 0.5) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// SplatImage blends LayerPalette by the weights of every splat buffer.
// Each buffer holds four interleaved channels; buffer i channel c is
// global layer slot i*4+c.
func SplatImage(buffers [][]float32, res int) (*image.RGBA, error) {
	if res <= 0 || len(buffers) == 0 {
		return nil, ErrEmptyBuffer
	}
	img := image.NewRGBA(image.Rect(0, 0, res, res))
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			var r, g, b, total float32
			for bi, buf := range buffers {
				base := (y*res + x) * 4
				if base+3 >= len(buf) {
					continue
				}
				for c := 0; c < 4; c++ {
					w := buf[base+c]
					if w <= 0 {
						continue
					}
					col := LayerPalette[(bi*4+c)%len(LayerPalette)]
					r += float32(col.R) * w
					g += float32(col.G) * w
					b += float32(col.B) * w
					total += w
				}
			}
			if total > 1 {
				r, g, b = r/total, g/total, b/total
			}
			img.SetRGBA(x, y, color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255})
		}
	}
	return img, nil
}

// MaskImage maps mask values to 8-bit gray.
func MaskImage(m *mask.Mask) (*image.Gray, error) {
	if m.Empty() {
		return nil, ErrEmptyBuffer
	}
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(math.Clamp01(m.At(x, y))*255 + 0.5)})
		}
	}
	return img, nil
}

// Render upscales base by scale and strokes the outlines over it.
func Render(base image.Image, scale int, outlines []Outline) *gg.Context {
	scale = max(scale, 1)
	b := base.Bounds()
	w, h := b.Dx()*scale, b.Dy()*scale

	up := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(up, up.Bounds(), base, b, draw.Src, nil)

	dc := gg.NewContextForImage(up)
	if len(outlines) == 0 {
		return dc
	}
	dc.SetLineWidth(max(1, float64(scale)*0.75))
	for _, o := range outlines {
		dc.SetRGBA(1, 0.25, 0.2, 0.9)
		for i, c := range o.Corners {
			px, py := float64(c.X)*float64(w), float64(c.Y)*float64(h)
			if i == 0 {
				dc.MoveTo(px, py)
			} else {
				dc.LineTo(px, py)
			}
		}
		dc.ClosePath()
		_ = dc.Stroke()
	}
	return dc
}

// WritePNG renders to w.
func WritePNG(w io.Writer, base image.Image, scale int, outlines []Outline) error {
	dc := Render(base, scale, outlines)
	defer dc.Close()
	return dc.EncodePNG(w)
}

// SavePNG renders to a file, creating its directory.
func SavePNG(path string, base image.Image, scale int, outlines []Outline) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	dc := Render(base, scale, outlines)
	defer dc.Close()
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("saving preview %s: %w", path, err)
	}
	return nil
}
