package shape

import (
	"context"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// Circle is a disc of the given radius sharing the radial gradient texture.
type Circle struct {
	state
	Radius float32
}

// NewCircle creates a circle shape.
func NewCircle(radius float32) *Circle {
	return &Circle{Radius: radius}
}

func (c *Circle) Kind() Kind { return KindCircle }

// GenerateMask binds the shared gradient and records a (2r, 0, 2r) box.
func (c *Circle) GenerateMask(_ context.Context, env *Env) error {
	if c.Radius <= 0 {
		return ErrDegenerateShape
	}
	tex, err := env.Assets.Texture(assets.TextureRadialGradient)
	if err != nil {
		return err
	}
	d := 2 * c.Radius
	c.commit(tex, math.Bounds{Size: math.Vec3{X: d, Z: d}})
	return nil
}

// Rectangle is a Width x Depth footprint sharing the radial gradient texture.
type Rectangle struct {
	state
	Width float32
	Depth float32
}

// NewRectangle creates a rectangle shape.
func NewRectangle(width, depth float32) *Rectangle {
	return &Rectangle{Width: width, Depth: depth}
}

func (r *Rectangle) Kind() Kind { return KindRectangle }

// GenerateMask binds the shared gradient and records a (W, 0, D) box
// centred at the origin.
func (r *Rectangle) GenerateMask(_ context.Context, env *Env) error {
	if r.Width <= 0 || r.Depth <= 0 {
		return ErrDegenerateShape
	}
	tex, err := env.Assets.Texture(assets.TextureRadialGradient)
	if err != nil {
		return err
	}
	r.commit(tex, math.Bounds{Size: math.Vec3{X: r.Width, Z: r.Depth}})
	return nil
}

// Global covers every active terrain with a constant full-strength mask.
type Global struct {
	state
}

// NewGlobal creates a global shape.
func NewGlobal() *Global {
	return &Global{}
}

func (g *Global) Kind() Kind { return KindGlobal }

func (g *Global) GenerateMask(_ context.Context, _ *Env) error {
	g.commit(mask.NewConstant(1, 1, 1), math.Bounds{})
	return nil
}

// WorldBounds ignores the transform and returns the union of all terrains.
func (g *Global) WorldBounds(_ math.Transform, terrains []math.Bounds) math.Bounds {
	if len(terrains) == 0 {
		return math.Bounds{}
	}
	b := terrains[0]
	for _, t := range terrains[1:] {
		b = b.Union(t)
	}
	return b
}

func (g *Global) Oriented() bool { return false }
