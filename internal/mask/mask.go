// Package mask holds the single-channel influence fields produced by shapes.
package mask

import (
	"fmt"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// Mask is a row-major single-channel field. Values are expected in [0, 1].
// Row y maps to the shape's local Z axis, column x to local X.
type Mask struct {
	Width  int
	Height int
	Data   []float32
}

// New creates a zeroed mask.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// NewConstant creates a mask filled with v.
func NewConstant(width, height int, v float32) *Mask {
	m := New(width, height)
	m.Fill(v)
	return m
}

// NewRadialGradient creates a square gradient that reads 1 at the centre
// and falls linearly to 0 at the inscribed circle's edge.
func NewRadialGradient(size int) *Mask {
	m := New(size, size)
	half := float32(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := (float32(x) + 0.5 - half) / half
			dy := (float32(y) + 0.5 - half) / half
			m.Data[y*size+x] = math.Clamp01(1 - math.Sqrt(dx*dx+dy*dy))
		}
	}
	return m
}

// String implements fmt.Stringer.
func (m *Mask) String() string {
	return fmt.Sprintf("mask(%dx%d)", m.Width, m.Height)
}

// Empty reports whether the mask has no texels.
func (m *Mask) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0
}

// At returns the texel at (x, y), clamping coordinates to the edges.
func (m *Mask) At(x, y int) float32 {
	x = clampInt(x, 0, m.Width-1)
	y = clampInt(y, 0, m.Height-1)
	return m.Data[y*m.Width+x]
}

// Set writes the texel at (x, y). Out of range writes are ignored.
func (m *Mask) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Data[y*m.Width+x] = v
}

// Fill sets every texel to v.
func (m *Mask) Fill(v float32) {
	for i := range m.Data {
		m.Data[i] = v
	}
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Data: make([]float32, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Max returns the largest texel value.
func (m *Mask) Max() float32 {
	var hi float32
	for i, v := range m.Data {
		if i == 0 || v > hi {
			hi = v
		}
	}
	return hi
}

// Sample reads the mask at normalized coordinates with bilinear filtering.
// Coordinates are clamped to [0, 1]; texel centres sit at (i+0.5)/size.
func (m *Mask) Sample(u, v float32) float32 {
	if m.Empty() {
		return 0
	}
	fx := math.Clamp01(u)*float32(m.Width) - 0.5
	fy := math.Clamp01(v)*float32(m.Height) - 0.5

	x0 := floor(fx)
	y0 := floor(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	top := math.Lerp(m.At(x0, y0), m.At(x0+1, y0), tx)
	bottom := math.Lerp(m.At(x0, y0+1), m.At(x0+1, y0+1), tx)
	return math.Lerp(top, bottom, ty)
}

func floor(v float32) int {
	i := int(v)
	if v < 0 && float32(i) != v {
		i--
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
