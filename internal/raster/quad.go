package raster

import (
	"github.com/Faultbox/terrastamp/pkg/math"
)

// Quad places a unit quad spanning [-0.5, 0.5] on X/Z into terrain UV
// space, where the terrain covers [0, 1] and the camera is centred on 0.5.
type Quad struct {
	Matrix  math.Mat4
	inverse math.Mat4
	valid   bool
}

// NewQuad builds T(centerUV - 0.5) * R * S(sizeUV). rotation contributes
// orientation only.
func NewQuad(centerUV, sizeUV math.Vec2, rotation math.Quat) Quad {
	m := math.Translate(centerUV.X-0.5, 0, centerUV.Y-0.5).
		Mul(rotation.Normalize().ToMat4().WithoutTranslation()).
		Mul(math.Scale(sizeUV.X, 1, sizeUV.Y))
	inv, ok := m.Inverse()
	return Quad{Matrix: m, inverse: inv, valid: ok}
}

// Valid reports whether the quad has a non-zero footprint.
func (q Quad) Valid() bool {
	return q.valid
}

// Local maps a terrain UV to the quad's mask UV. ok is false outside
// the footprint.
func (q Quad) Local(uv math.Vec2) (local math.Vec2, ok bool) {
	if !q.valid {
		return math.Vec2{}, false
	}
	p := q.inverse.TransformPoint(math.Vec3{X: uv.X - 0.5, Z: uv.Y - 0.5})
	if math.Abs(p.X) > 0.5 || math.Abs(p.Z) > 0.5 {
		return math.Vec2{}, false
	}
	return math.Vec2{X: p.X + 0.5, Y: p.Z + 0.5}, true
}

// Corners returns the quad's corners in terrain UV, in winding order.
func (q Quad) Corners() [4]math.Vec2 {
	var out [4]math.Vec2
	for i, c := range [4]math.Vec3{{X: -0.5, Z: -0.5}, {X: 0.5, Z: -0.5}, {X: 0.5, Z: 0.5}, {X: -0.5, Z: 0.5}} {
		p := q.Matrix.TransformPoint(c)
		out[i] = math.Vec2{X: p.X + 0.5, Y: p.Z + 0.5}
	}
	return out
}

// Footprint returns the UV-space box covered by the quad's corners.
func (q Quad) Footprint() (lo, hi math.Vec2) {
	lo = math.Vec2{X: 1e30, Y: 1e30}
	hi = math.Vec2{X: -1e30, Y: -1e30}
	for _, p := range q.Corners() {
		lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
		hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
	}
	return lo, hi
}

// OverlapsTerrain reports whether the rotated footprint touches the
// terrain's [0, 1] UV square.
func (q Quad) OverlapsTerrain() bool {
	if !q.valid {
		return false
	}
	lo, hi := q.Footprint()
	return lo.X <= 1 && hi.X >= 0 && lo.Y <= 1 && hi.Y >= 0
}

// Placement describes where a stamp lands on one terrain.
type Placement struct {
	World   math.Bounds
	Terrain math.Bounds
	// Rotation is ignored unless Oriented is set.
	Rotation       math.Quat
	Oriented       bool
	MaintainAspect bool
}

// Quad converts the placement into terrain UV space.
func (p Placement) Quad() Quad {
	origin := p.Terrain.Min()
	tsize := math.Vec2{X: math.NonZero(p.Terrain.Size.X), Y: math.NonZero(p.Terrain.Size.Z)}

	center := p.World.Center.XZ().Sub(origin.XZ()).Div(tsize)
	size := p.World.Size.XZ().Div(tsize).Mul(p.aspect())

	rot := math.QuatIdentity()
	if p.Oriented {
		rot = p.Rotation
	}
	return NewQuad(center, size, rot)
}

// aspect stretches the shorter world axis to the longer one unless the
// stamp keeps its own aspect ratio.
func (p Placement) aspect() math.Vec2 {
	if p.MaintainAspect {
		return math.Vec2{X: 1, Y: 1}
	}
	w, d := p.World.Size.X, p.World.Size.Z
	if w <= 0 || d <= 0 {
		return math.Vec2{X: 1, Y: 1}
	}
	side := max(w, d)
	return math.Vec2{X: side / w, Y: side / d}
}
